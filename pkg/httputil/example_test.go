package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sgloader/pkg/httputil"
	"github.com/wonny/sgloader/pkg/logger"
)

// Example_basic demonstrates a JSON GET with retry and an auth header
func Example_basic() {
	client := httputil.NewWithTimeout(logger.Nop(), 10*time.Second).
		WithRetry(2, 500*time.Millisecond).
		WithHeader("Authorization", "APPID-100:access-token")

	var out struct {
		S string `json:"s"`
	}
	if err := client.GetJSON(context.Background(), "https://api-t1.fyers.in/data/quotes?symbols=NSE:SBIN-EQ", &out); err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	fmt.Printf("Status: %s\n", out.S)
}
