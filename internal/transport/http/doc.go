// Package http implements the HTTP handlers of the analytics service. It
// is a thin layer between the chi router and the services: handlers parse
// and validate requests, call a service and render the result.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Engine
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Handler Structure
//
// Each handler follows this pattern:
//
//	func (h *AnalyticsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
//	    var req api.AnalyticsRequest
//	    if err := h.validator.DecodeJSON(r, &req); err != nil {
//	        h.errorHandler.HandleError(w, r, err)
//	        return
//	    }
//
//	    stats, err := h.service.Statistics(r.Context(), req.Data, extended)
//	    if err != nil {
//	        h.errorHandler.HandleError(w, r, err)
//	        return
//	    }
//
//	    render.JSON(w, r, stats)
//	}
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/no-data",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "No data provided",
//	    "instance": "/statistics",
//	    "error": "No data provided"
//	}
//
// Degraded predictions and detections are not errors. They answer 200
// and say how they were produced in model_used or method.
//
// # Testing
//
// Handlers are tested with httptest against a chi router, either with a
// real engine behind the services or with stub services.
package http
