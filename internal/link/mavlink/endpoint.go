package mavlink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
)

// ParseEndpoint converts an endpoint description into a gomavlib endpoint.
// Supported forms are "udps:addr:port", "udpc:host:port", "tcps:addr:port",
// "tcpc:host:port" and "serial:/dev/ttyX:baud".
func ParseEndpoint(value string) (gomavlib.EndpointConf, error) {
	kind, addr, ok := strings.Cut(value, ":")
	if !ok || addr == "" {
		return nil, fmt.Errorf("invalid endpoint '%s'", value)
	}

	switch kind {
	case "udps":
		return gomavlib.EndpointUDPServer{Address: addr}, nil
	case "udpc":
		return gomavlib.EndpointUDPClient{Address: addr}, nil
	case "tcps":
		return gomavlib.EndpointTCPServer{Address: addr}, nil
	case "tcpc":
		return gomavlib.EndpointTCPClient{Address: addr}, nil
	case "serial":
		i := strings.LastIndex(addr, ":")
		if i <= 0 {
			return nil, fmt.Errorf("invalid serial endpoint '%s': baud rate required", value)
		}
		baud, err := strconv.Atoi(addr[i+1:])
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid serial endpoint '%s': bad baud rate", value)
		}
		return gomavlib.EndpointSerial{Device: addr[:i], Baud: baud}, nil
	default:
		return nil, fmt.Errorf("invalid endpoint '%s': unknown kind '%s'", value, kind)
	}
}
