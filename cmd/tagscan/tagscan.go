package main

import (
	"k8s.io/component-base/logs"
	_ "k8s.io/component-base/logs/json/register"
	"os"
	"tagscan/cmd/tagscan/app"
)

func main() {
	cmd := app.NewTagScanCmd()
	logs.InitLogs()
	defer logs.FlushLogs()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
