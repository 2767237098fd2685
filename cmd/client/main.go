// Package main is a small operator/test harness that submits one render
// request to a cluster frontend and prints the reply. It is not part of the
// broker/worker protocol surface.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leandrosilva/wkpdfcluster/internal/client"
	"github.com/leandrosilva/wkpdfcluster/internal/version"
)

var (
	endpoint    string
	url         string
	timeout     int
	globalFlags []string
	objectFlags []string
)

var rootCmd = &cobra.Command{
	Use:     "client",
	Short:   "WkHTMLtoPDF cluster render client",
	Version: version.VERSION,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Submit a render request to a cluster and print the reply",
	RunE:  runRender,
}

func main() {
	renderCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "tcp://127.0.0.1:6660", "broker frontend endpoint")
	renderCmd.Flags().StringVarP(&url, "url", "u", "", "page URL to render")
	renderCmd.Flags().IntVarP(&timeout, "timeout", "t", 5, "reply timeout in seconds")
	renderCmd.Flags().StringArrayVarP(&globalFlags, "global", "g", nil, "global render setting key=value (repeatable)")
	renderCmd.Flags().StringArrayVarP(&objectFlags, "object", "b", nil, "object render setting key=value (repeatable)")
	if err := renderCmd.MarkFlagRequired("url"); err != nil {
		log.WithError(err).Fatal("failed to mark url flag required")
	}

	rootCmd.AddCommand(renderCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("client exited with error")
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	global, err := parseKeyValues(globalFlags)
	if err != nil {
		return fmt.Errorf("invalid --global value: %w", err)
	}
	object, err := parseKeyValues(objectFlags)
	if err != nil {
		return fmt.Errorf("invalid --object value: %w", err)
	}

	c, err := client.Dial(endpoint, time.Duration(timeout)*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer c.Close()

	status, content, err := c.Render(client.RenderRequest{URL: url, Global: global, Object: object})
	if err != nil {
		return err
	}

	fmt.Printf("status: %s\n", status)
	fmt.Printf("content: %s\n", content)
	if status != "200" {
		os.Exit(1)
	}
	return nil
}

// parseKeyValues turns repeated "key=value" flags into a settings map. A
// value that parses as JSON (number, bool, quoted string) is decoded as
// such; anything else is carried as a plain string.
func parseKeyValues(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		key, raw := parts[0], parts[1]

		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			out[key] = decoded
		} else {
			out[key] = raw
		}
	}
	return out, nil
}
