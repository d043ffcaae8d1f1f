package main

import (
	"os"

	insightscmder "github.com/papercomputeco/insights/cmd/insights"
)

func main() {
	cmd := insightscmder.NewInsightsCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
