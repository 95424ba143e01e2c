package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every domain handler that exposes HTTP routes.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
