package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/dci/pkg/api/rest/middleware"
)

const version = "1.0.0"

var (
	serverAddr string
	namespace  string
	timeout    time.Duration
	authToken  string
)

var rootCmd = &cobra.Command{
	Use:   "dci-cli",
	Short: "CLI for the DCI k-nearest-neighbour server",
	Long:  `A command-line interface for populating and querying a DCI server over its HTTP API.`,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]interface{}
		if err := apiCall(http.MethodGet, "/v1/health", nil, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [namespace]",
	Short: "Show server or namespace statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/v1/stats"
		if len(args) == 1 {
			path += "/" + args[0]
		}

		var resp map[string]interface{}
		if err := apiCall(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Populate the index from a JSON file of points",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		points, err := readMatrix(file)
		if err != nil {
			return err
		}

		levels, _ := cmd.Flags().GetInt("levels")
		fov, _ := cmd.Flags().GetInt("field-of-view")
		visit, _ := cmd.Flags().GetFloat64("prop-to-visit")
		retrieve, _ := cmd.Flags().GetFloat64("prop-to-retrieve")

		body := map[string]interface{}{
			"namespace":        namespace,
			"points":           points,
			"num_levels":       levels,
			"field_of_view":    fov,
			"prop_to_visit":    visit,
			"prop_to_retrieve": retrieve,
		}

		var resp map[string]interface{}
		if err := apiCall(http.MethodPost, "/v1/index/add", body, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query nearest neighbours",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		vectorStr, _ := cmd.Flags().GetString("vector")

		var queries [][]float64
		switch {
		case file != "":
			m, err := readMatrix(file)
			if err != nil {
				return err
			}
			queries = m
		case vectorStr != "":
			v, err := parseVector(vectorStr)
			if err != nil {
				return err
			}
			queries = [][]float64{v}
		default:
			return fmt.Errorf("either --file or --vector is required")
		}

		k, _ := cmd.Flags().GetInt("k")
		fov, _ := cmd.Flags().GetInt("field-of-view")
		visit, _ := cmd.Flags().GetFloat64("prop-to-visit")
		retrieve, _ := cmd.Flags().GetFloat64("prop-to-retrieve")

		body := map[string]interface{}{
			"namespace":        namespace,
			"queries":          queries,
			"k":                k,
			"field_of_view":    fov,
			"prop_to_visit":    visit,
			"prop_to_retrieve": retrieve,
		}

		var resp map[string]interface{}
		if err := apiCall(http.MethodPost, "/v1/index/query", body, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the index of a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]interface{}{"namespace": namespace}

		var resp map[string]interface{}
		if err := apiCall(http.MethodPost, "/v1/index/clear", body, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a JWT for a server running with auth enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			secret = os.Getenv("DCI_JWT_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("--secret or DCI_JWT_SECRET is required")
		}

		user, _ := cmd.Flags().GetString("user")
		rolesStr, _ := cmd.Flags().GetString("roles")
		namespacesStr, _ := cmd.Flags().GetString("namespaces")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := middleware.GenerateToken(user,
			strings.Split(rolesStr, ","), strings.Split(namespacesStr, ","), secret, ttl)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a synthetic add/query benchmark against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		dim, _ := cmd.Flags().GetInt("dim")
		numPoints, _ := cmd.Flags().GetInt("points")
		numQueries, _ := cmd.Flags().GetInt("queries")
		k, _ := cmd.Flags().GetInt("k")
		levels, _ := cmd.Flags().GetInt("levels")
		seed, _ := cmd.Flags().GetInt64("seed")

		rng := rand.New(rand.NewSource(seed))
		points := randomMatrix(rng, numPoints, dim)
		queries := randomMatrix(rng, numQueries, dim)

		fmt.Printf("Adding %d points (dim=%d, levels=%d)...\n", numPoints, dim, levels)
		start := time.Now()
		var addResp map[string]interface{}
		if err := apiCall(http.MethodPost, "/v1/index/add", map[string]interface{}{
			"namespace":  namespace,
			"points":     points,
			"num_levels": levels,
		}, &addResp); err != nil {
			return err
		}
		fmt.Printf("Construction took %v\n", time.Since(start).Round(time.Millisecond))

		fmt.Printf("Running %d queries (k=%d)...\n", numQueries, k)
		start = time.Now()
		var queryResp struct {
			IDs [][]int32 `json:"ids"`
		}
		if err := apiCall(http.MethodPost, "/v1/index/query", map[string]interface{}{
			"namespace": namespace,
			"queries":   queries,
			"k":         k,
		}, &queryResp); err != nil {
			return err
		}
		elapsed := time.Since(start)
		fmt.Printf("Queries took %v (%.2fms per query)\n",
			elapsed.Round(time.Millisecond),
			float64(elapsed.Milliseconds())/float64(numQueries))

		// Recall against client-side brute force
		total := 0.0
		for qi, query := range queries {
			truth := bruteForce(query, points, k)
			matches := 0
			for _, id := range queryResp.IDs[qi] {
				if truth[id] {
					matches++
				}
			}
			total += float64(matches) / float64(k)
		}
		fmt.Printf("Recall@%d: %.3f\n", k, total/float64(numQueries))

		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "default", "namespace to use")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for servers with auth enabled")

	addCmd.Flags().String("file", "", "JSON file holding an array of points")
	addCmd.Flags().Int("levels", 0, "number of levels (0 = server default)")
	addCmd.Flags().Int("field-of-view", 0, "construction probes into the level below")
	addCmd.Flags().Float64("prop-to-visit", 0, "construction visit budget")
	addCmd.Flags().Float64("prop-to-retrieve", 0, "construction retrieve budget")

	queryCmd.Flags().String("file", "", "JSON file holding an array of query vectors")
	queryCmd.Flags().String("vector", "", "single query vector as comma-separated values")
	queryCmd.Flags().Int("k", 10, "number of neighbours to return")
	queryCmd.Flags().Int("field-of-view", 0, "candidates propagated between levels")
	queryCmd.Flags().Float64("prop-to-visit", 0, "query visit budget")
	queryCmd.Flags().Float64("prop-to-retrieve", 0, "query retrieve budget")

	tokenCmd.Flags().String("secret", "", "JWT HMAC secret")
	tokenCmd.Flags().String("user", "cli", "token subject")
	tokenCmd.Flags().String("roles", "admin", "comma-separated roles")
	tokenCmd.Flags().String("namespaces", "*", "comma-separated namespaces the token may access")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	benchCmd.Flags().Int("dim", 128, "vector dimensionality")
	benchCmd.Flags().Int("points", 10000, "number of points")
	benchCmd.Flags().Int("queries", 100, "number of queries")
	benchCmd.Flags().Int("k", 10, "neighbours per query")
	benchCmd.Flags().Int("levels", 2, "number of levels")
	benchCmd.Flags().Int64("seed", 1, "random seed")

	rootCmd.AddCommand(healthCmd, statsCmd, addCmd, queryCmd, clearCmd, tokenCmd, benchCmd)
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// apiCall performs one JSON request against the server
func apiCall(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverAddr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// readMatrix loads a JSON array of float64 rows
func readMatrix(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var m [][]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid matrix in %s: %w", path, err)
	}
	return m, nil
}

// parseVector parses "1,2,3" into a vector
func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	v := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		v = append(v, f)
	}
	return v, nil
}

// randomMatrix draws n standard normal rows
func randomMatrix(rng *rand.Rand, n, dim int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		m[i] = row
	}
	return m
}

// bruteForce returns the id set of the exact k nearest points
func bruteForce(query []float64, points [][]float64, k int) map[int32]bool {
	type pair struct {
		id   int32
		dist float64
	}

	all := make([]pair, len(points))
	for i, p := range points {
		var sum float64
		for j := range p {
			d := query[j] - p[j]
			sum += d * d
		}
		all[i] = pair{id: int32(i), dist: sum}
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].dist != all[b].dist {
			return all[a].dist < all[b].dist
		}
		return all[a].id < all[b].id
	})

	if len(all) > k {
		all = all[:k]
	}

	truth := make(map[int32]bool, len(all))
	for _, p := range all {
		truth[p.id] = true
	}
	return truth
}
