package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "vid-extract",
		Short: "Vid-Extract CLI - metadata and media extraction for social platforms",
		Long:  `A command-line interface for the vid-extract platform handler framework.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	downloadCmd.Flags().String("quality", "best", "Quality preference (e.g. 1080p, 720p, best)")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(cacheStatsCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [url]",
	Short: "Show which platform handles a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result := postJSON("/api/v1/resolve", map[string]string{"url": args[0]})
		fmt.Printf("Platform: %v\n", result["platform"])
		caps, _ := json.MarshalIndent(result["capabilities"], "", "  ")
		fmt.Printf("Capabilities: %s\n", caps)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Extract video metadata for a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result := postJSON("/api/v1/videos/info", map[string]string{"url": args[0]})
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Start a tracked download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		quality, _ := cmd.Flags().GetString("quality")
		result := postJSON("/api/v1/downloads", map[string]string{
			"url":     args[0],
			"quality": quality,
		})
		fmt.Printf("Download started!\n")
		fmt.Printf("ID: %v\n", result["id"])
		fmt.Printf("Platform: %v\n", result["platform"])
		fmt.Printf("Status: %v\n", result["status"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked downloads",
	Run: func(cmd *cobra.Command, args []string) {
		body := get("/api/v1/downloads")
		var downloads []map[string]interface{}
		json.Unmarshal(body, &downloads)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tPLATFORM\tSTATUS\tPERCENT")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%.1f\n",
				truncate(stringOf(d["id"]), 8),
				truncate(stringOf(d["url"]), 40),
				d["platform"],
				d["status"],
				floatOf(d["percent"]))
		}
		w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one tracked download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body := get("/api/v1/downloads/" + args[0])
		var result map[string]interface{}
		json.Unmarshal(body, &result)
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel an in-flight download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postJSON("/api/v1/downloads/"+args[0]+"/cancel", nil)
		fmt.Println("Download cancelled")
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Show extraction cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		body := get("/api/v1/cache/stats")
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "HITS\tMISSES\tEVICTIONS\tEXPIRATIONS\tSIZE\tCAPACITY")
		fmt.Fprintf(w, "%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\n",
			floatOf(stats["hits"]),
			floatOf(stats["misses"]),
			floatOf(stats["evictions"]),
			floatOf(stats["expirations"]),
			floatOf(stats["size"]),
			floatOf(stats["capacity"]))
		w.Flush()
	},
}

func postJSON(path string, payload map[string]string) map[string]interface{} {
	var reader io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		reader = bytes.NewBuffer(data)
	}

	resp, err := http.Post(serverURL+path, "application/json", reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
		os.Exit(1)
	}

	var result map[string]interface{}
	json.Unmarshal(body, &result)
	return result
}

func get(path string) []byte {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
		os.Exit(1)
	}
	return body
}

func stringOf(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func floatOf(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
