package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"

	"safeguard.io/safeguard/internal/api/openapi"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// MustOpenAPIValidator creates an OpenAPI request validator middleware and panics on setup failure.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator validates requests against the embedded OpenAPI
// document. Paths the document does not describe pass through.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, err
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}

	basePath = normalizeBasePath(basePath)
	options := &openapi3filter.Options{
		MultiError: true,
		AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error {
			// JWT is handled by dedicated middleware in the router chain.
			return nil
		},
	}

	return func(c *gin.Context) {
		origPath := c.Request.URL.Path
		origRawPath := c.Request.URL.RawPath

		route, pathParams, routeErr := findRouteWithFallback(router, c.Request, basePath)
		c.Request.URL.Path = origPath
		c.Request.URL.RawPath = origRawPath
		if routeErr != nil {
			if isPathNotFoundError(routeErr) {
				c.Next()
				return
			}
			if errors.Is(routeErr, routers.ErrMethodNotAllowed) {
				AbortWithError(c, apperrors.New(apperrors.CodeInvalidRequestField,
					"method not allowed", http.StatusMethodNotAllowed))
				return
			}
			AbortWithError(c, apperrors.ErrInvalidPayloadf("path", routeErr.Error()))
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			AbortWithError(c, requestValidationError(err))
			return
		}
		c.Next()
	}, nil
}

// requestValidationError converts kin-openapi failures into InvalidPayload
// errors naming the offending fields.
func requestValidationError(err error) *apperrors.AppError {
	var multi openapi3.MultiError
	errs := []error{err}
	if errors.As(err, &multi) {
		errs = multi
	}

	fields := make([]apperrors.FieldError, 0, len(errs))
	for _, e := range errs {
		fe := apperrors.FieldError{Code: "INVALID", Message: e.Error()}
		var reqErr *openapi3filter.RequestError
		if errors.As(e, &reqErr) {
			switch {
			case reqErr.Parameter != nil:
				fe.Field = reqErr.Parameter.Name
			case reqErr.RequestBody != nil:
				fe.Field = "body"
			}
			fe.Message = reqErr.Reason
			if fe.Message == "" && reqErr.Err != nil {
				fe.Message = reqErr.Err.Error()
			}
		}
		fields = append(fields, fe)
	}
	return apperrors.BadRequest(apperrors.CodeValidationFailed, "request does not match the API contract").
		WithFieldErrors(fields)
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	return "/" + strings.Trim(basePath, "/")
}

func normalizeValidationPath(basePath, path string) string {
	if basePath == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	if path == basePath {
		return "/"
	}
	if strings.HasPrefix(path, basePath+"/") {
		return "/" + strings.TrimPrefix(path, basePath+"/")
	}
	return path
}

func findRouteWithFallback(
	router routers.Router,
	req *http.Request,
	basePath string,
) (*routers.Route, map[string]string, error) {
	origPath := req.URL.Path
	origRawPath := req.URL.RawPath

	candidates := [][2]string{{origPath, origRawPath}}
	normalizedPath := normalizeValidationPath(basePath, origPath)
	normalizedRawPath := origRawPath
	if origRawPath != "" {
		normalizedRawPath = normalizeValidationPath(basePath, origRawPath)
	}
	if normalizedPath != origPath || normalizedRawPath != origRawPath {
		candidates = append(candidates, [2]string{normalizedPath, normalizedRawPath})
	}

	var lastErr error
	for _, candidate := range candidates {
		req.URL.Path = candidate[0]
		req.URL.RawPath = candidate[1]

		route, pathParams, err := router.FindRoute(req)
		if err == nil {
			return route, pathParams, nil
		}
		if !isPathNotFoundError(err) {
			return nil, nil, err
		}
		lastErr = err
	}

	req.URL.Path = origPath
	req.URL.RawPath = origRawPath
	return nil, nil, lastErr
}

func isPathNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	if strings.Contains(err.Error(), routers.ErrPathNotFound.Error()) {
		return true
	}
	if routeErr, ok := err.(*routers.RouteError); ok && strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error()) {
		return true
	}
	return false
}
