package emailchange

import (
	"fmt"
	"net/url"
	"strings"
)

// URLBuilder turns a route name and query parameters into an absolute URL
type URLBuilder interface {
	BuildURL(routeName string, params map[string]string) (string, error)
}

// RouteURLBuilder resolves route names against a fixed table of paths under a base URL
type RouteURLBuilder struct {
	baseURL *url.URL
	routes  map[string]string
}

// NewRouteURLBuilder creates a builder. routes maps route names to paths.
func NewRouteURLBuilder(baseURL string, routes map[string]string) (*RouteURLBuilder, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %s", baseURL)
	}

	table := make(map[string]string, len(routes))
	for name, path := range routes {
		table[name] = path
	}

	return &RouteURLBuilder{baseURL: u, routes: table}, nil
}

func (b *RouteURLBuilder) BuildURL(routeName string, params map[string]string) (string, error) {
	path, ok := b.routes[routeName]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", routeName)
	}

	u := *b.baseURL
	u.Path = strings.TrimRight(b.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")

	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
