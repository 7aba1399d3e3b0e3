//go:build js && wasm

// Command webapp is the browser side of the pdf2png UI.
// Build with: GOARCH=wasm GOOS=js go build -o web/app.wasm ./cmd/webapp
package main

import (
	"github.com/HardCoreQual/pdf2png/webapp"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

func main() {
	for _, path := range webapp.Routes {
		app.Route(path, func() app.Composer { return &webapp.App{} })
	}
	app.RunWhenOnBrowser()
}
