// Package web 内嵌浏览器页面。
package web

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var index []byte

// Index 返回聊天页面。
func Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(index)
}
