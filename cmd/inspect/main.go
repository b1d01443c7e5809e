// Package main is the heatmap command line tool: it analyzes one image, appends
// the average to the result table and prints it.
package main

import (
	"os"

	"github.com/anime-shed/heatmap-inspector/internal/logger"
)

func main() {
	logger.UseTextFormat(os.Stderr)

	if err := newApp().Run(os.Args); err != nil {
		logger.WithError(err).Fatal("heatmap-inspect failed")
	}
}
