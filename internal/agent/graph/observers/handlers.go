package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks returns the handlers attached to every graph run: typed
// prompt and chat model loggers plus node timings.
func NewAllCallbacks() []einocb.Handler {
	typed := callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
	return []einocb.Handler{typed, newNodeHandler()}
}
