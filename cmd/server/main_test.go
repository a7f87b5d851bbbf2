package main

import (
	"net/http"
	"testing"

	"github.com/hiroki-koketsu/go-todo/internal/handler"
)

func TestServerWriteTimeoutOutlastsRequestTimeout(t *testing.T) {
	srv := newServer(":0", http.NotFoundHandler())
	if srv.WriteTimeout <= handler.RequestTimeout {
		t.Fatalf("write timeout %v cuts off requests before the %v handler timeout", srv.WriteTimeout, handler.RequestTimeout)
	}
}
