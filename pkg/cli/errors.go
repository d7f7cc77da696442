package cli

import (
	"errors"
	"net/http"
	"strings"

	"github.com/getmockd/kongreg/pkg/config"
	"github.com/getmockd/kongreg/pkg/registry"
)

// formatError renders err for the terminal, adding a hint for the failures
// users can usually fix themselves.
func formatError(err error) string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())

	if hint := errorHint(err); hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(hint)
	}
	return b.String()
}

func errorHint(err error) string {
	var gwErr *registry.GatewayError
	var schemaErr *config.SchemaValidationError

	switch {
	case errors.As(err, &schemaErr):
		return "see `kongreg validate` for the accepted configuration"
	case errors.Is(err, registry.ErrUnknownShape):
		return "use --adapter kong-v0 for Kong 0.x or --adapter kong-v2 for Kong 1.0 and later"
	case errors.As(err, &gwErr):
		return gatewayHint(gwErr)
	}
	return ""
}

func gatewayHint(err *registry.GatewayError) string {
	switch {
	case err.Err != nil:
		return "is the Kong admin API reachable? Check gateway.url or --gateway-url"
	case err.StatusCode == http.StatusUnauthorized, err.StatusCode == http.StatusForbidden:
		return "the admin API rejected the request; set gateway.token or $KONGREG_GATEWAY_TOKEN"
	case err.StatusCode == http.StatusNotFound && strings.HasPrefix(err.Path, "/apis"):
		return "Kong 1.0 and later removed /apis; try --adapter kong-v2"
	case err.StatusCode == http.StatusNotFound && strings.HasPrefix(err.Path, "/services"):
		return "Kong 0.x has no /services endpoint; try --adapter kong-v0"
	}
	return ""
}
