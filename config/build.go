package config

import (
	"fmt"
	"time"

	"github.com/artpar/llmproxy/domain/route"
	"github.com/artpar/llmproxy/domain/transform"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Built is the compiled, immutable configuration: every regex and
// JSONPath expression pre-parsed, every route validated, ready to hand
// to the HTTP server.
type Built struct {
	Server         ServerConfig
	Logging        LoggingConfig
	Metrics        MetricsConfig
	ConnectTimeout time.Duration
	Routes         *route.Table
}

// Build compiles a RawConfig into a Built configuration. Every regex and
// JSONPath compilation error and every ModelRoute.Validate failure is
// surfaced here, at load time, never at request time.
func Build(raw *RawConfig) (*Built, error) {
	connectTimeout := raw.Server.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	routes := make([]*route.ModelRoute, 0, len(raw.Routes))
	for name, rc := range raw.Routes {
		r, err := buildRoute(name, rc)
		if err != nil {
			return nil, err
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		routes = append(routes, r)
	}

	return &Built{
		Server:         raw.Server,
		Logging:        raw.Logging,
		Metrics:        raw.Metrics,
		ConnectTimeout: connectTimeout,
		Routes:         route.NewTable(routes),
	}, nil
}

func buildRoute(name string, rc RouteConfig) (*route.ModelRoute, error) {
	timeout := time.Duration(rc.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	sslVerify := true
	if rc.SSLVerify != nil {
		sslVerify = *rc.SSLVerify
	}

	headerMode := route.HeaderMode(rc.Headers.Mode)
	if headerMode == "" {
		headerMode = route.HeaderModePassthrough
	}

	retry := route.RetryPolicy{
		MaxAttempts:  rc.Retry.MaxAttempts,
		BackoffMs:    rc.Retry.BackoffMs,
		MaxBackoffMs: rc.Retry.MaxBackoffMs,
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	if retry.MaxBackoffMs < retry.BackoffMs {
		retry.MaxBackoffMs = retry.BackoffMs
	}

	transforms, err := buildTransforms(name, rc.Transforms)
	if err != nil {
		return nil, err
	}

	return &route.ModelRoute{
		Name:        name,
		BackendKind: route.BackendKind(rc.BackendKind),
		Endpoint:    rc.Endpoint,
		APIKey:      rc.APIKey,
		TargetModel: rc.TargetModel,
		Timeout:     timeout,
		Retry:       retry,
		SSLVerify:   sslVerify,
		Headers: route.HeaderPolicy{
			Mode:  headerMode,
			Force: rc.Headers.Force,
			Add:   rc.Headers.Add,
			Drop:  rc.Headers.Drop,
		},
		Transforms: transforms,
	}, nil
}

func buildTransforms(routeName string, tc TransformsConfig) (route.TransformPolicy, error) {
	req, err := buildSteps(routeName, "request", tc.Request)
	if err != nil {
		return route.TransformPolicy{}, err
	}
	resp, err := buildSteps(routeName, "response", tc.Response)
	if err != nil {
		return route.TransformPolicy{}, err
	}
	return route.TransformPolicy{Request: req, Response: resp}, nil
}

func buildSteps(routeName, side string, steps []TransformStepConfig) ([]transform.Transform, error) {
	out := make([]transform.Transform, 0, len(steps))
	for i, step := range steps {
		t, err := buildStep(step)
		if err != nil {
			return nil, fmt.Errorf("config: route %q %s transform[%d]: %w", routeName, side, i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func buildStep(step TransformStepConfig) (transform.Transform, error) {
	switch step.Type {
	case "regex":
		return transform.NewRegex(step.Pattern, step.Replacement)
	case "jsonpath_drop":
		return transform.NewJSONPathDrop(step.Path)
	case "jsonpath_add":
		return transform.NewJSONPathAdd(step.Path, step.Value)
	default:
		return nil, fmt.Errorf("unknown transform type %q", step.Type)
	}
}
