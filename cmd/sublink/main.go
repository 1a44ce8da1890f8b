package main

import (
	// Register Plugins via side-effects
	_ "sublink/internal/collectors/file"
	_ "sublink/internal/collectors/http"
	_ "sublink/internal/publishers/file"
	_ "sublink/internal/publishers/github"
	_ "sublink/internal/publishers/stdout"
)

func main() {
	Execute()
}
