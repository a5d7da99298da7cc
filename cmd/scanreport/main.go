package main

import (
	"log"
	"os"

	"github.com/sudesh1611/scanreport/pkg"
)

var (
	version = "0.0.1"
)

func main() {
	app := pkg.AppConfig{}.NewApp(version)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}
