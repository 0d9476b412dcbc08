package main

import (
	"os"

	"driftchat/internal/app"
)

// @title           driftchat API
// @version         1.0
// @description     Streaming multi-provider AI chat with shareable threads and guest sessions.
// @BasePath        /
func main() {
	os.Exit(app.Run())
}
