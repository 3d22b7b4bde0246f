// Package http implements the HTTP handlers of the geodash service. Handlers
// are a thin layer over the services package: they parse and validate the
// request, call a service and render the result.
//
// # Handler Structure
//
// Each handler follows this pattern:
//
//	func (h *Handler) HandleSomething(w http.ResponseWriter, r *http.Request) {
//	    result, err := h.service.DoSomething(r.Context(), ...)
//	    if err != nil {
//	        h.errorHandler.HandleError(w, r, err)
//	        return
//	    }
//	    render.JSON(w, r, result)
//	}
//
// Routes are grouped per handler and mounted by the application:
//
//	/api/v1/sessions        DatasetHandler
//	/api/v1/stats           MetricsHandler
//	/api/v1/log/client      ClientLogHandler
//	/api/health             HealthHandler
//	/ws                     WebSocketHandler
//
// # Error Handling
//
// All errors are rendered as RFC 7807 Problem Details by the errors package.
// Pipeline failures carry the user-facing message as the detail:
//
//	{
//	    "type": "/errors/dataset/missing-field",
//	    "title": "Missing Required Field",
//	    "status": 422,
//	    "detail": "Source data does not have 'lat' column.",
//	    "instance": "/api/v1/sessions/7d0c.../dataset",
//	    "kind": "missing_required_field",
//	    "field": "lat",
//	    "stage": "validate",
//	    "trace_id": "..."
//	}
//
// # WebSocket Support
//
// A client watches one session. The session must exist before the upgrade;
// afterwards the client receives that session's dataset events only.
package http
