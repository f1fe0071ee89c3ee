package binance

import (
	"fmt"
	"strconv"
)

// Binance order ids are numeric; the gateway contract uses strings.

func formatOrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseOrderID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q: %w", id, err)
	}
	return n, nil
}
