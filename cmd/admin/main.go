// Command stellarcore-admin is the operator console for the control
// plane (spec.md §6): it replaces the teacher's line-oriented
// tools/console.go with one cobra subcommand per endpoint, talking
// JSON over HTTP instead of parsing free-text commands from stdin.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stellarcore-admin",
		Short: "StellarCore operator console",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("STELLARCORE_SERVER", "http://localhost:5000"), "control plane base URL")

	root.AddCommand(
		newStatusCommand(),
		newCelestialCommand(),
		newFleetsCommand(),
		newPlayersCommand(),
		newAOICommand(),
		newLogsCommand(),
		newStatsCommand(),
		newSettingsCommand(),
		newEmergencyStopCommand(),
		newSimPlayersCommand(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// apiResponse mirrors internal/server/controlplane.go's response
// envelope so the console can print either the error or the data.
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func call(method, path string, body interface{}) (apiResponse, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apiResponse{}, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return apiResponse{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("connecting to %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, err
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return apiResponse{}, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	return out, nil
}

// printResult renders the envelope as pretty-printed JSON, or the
// server's error string if the call failed.
func printResult(resp apiResponse, err error) error {
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("server: %s", resp.Error)
	}
	if resp.Data == nil {
		fmt.Println("ok")
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Data, "", "  "); err != nil {
		fmt.Println(string(resp.Data))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and uptime",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := call(http.MethodGet, "/api/status", nil)
			if err != nil || !resp.Success {
				return printResult(resp, err)
			}
			var s struct {
				Status        string `json:"status"`
				Version       string `json:"version"`
				PlayerCount   int    `json:"playerCount"`
				MaxPlayers    int    `json:"maxPlayers"`
				UptimeSeconds int64  `json:"uptimeSeconds"`
			}
			if err := json.Unmarshal(resp.Data, &s); err != nil {
				return printResult(resp, nil)
			}
			fmt.Printf("status: %s | version %s | players %d/%d | uptime %s\n",
				s.Status, s.Version, s.PlayerCount, s.MaxPlayers,
				humanize.RelTime(time.Now().Add(-time.Duration(s.UptimeSeconds)*time.Second), time.Now(), "", ""))
			return nil
		},
	}
}

func newCelestialCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "celestial", Short: "Manage celestial bodies"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every celestial body",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, "/api/celestial", nil))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one celestial body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, "/api/celestial/"+args[0], nil))
		},
	})

	var name, bodyType, color string
	var mass float64
	var radius float32
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a celestial body",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"name": name, "type": bodyType, "mass": mass, "radius": radius, "color": color,
			}
			return printResult(call(http.MethodPost, "/api/celestial", body))
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "body name")
	createCmd.Flags().StringVar(&bodyType, "type", "planet", "star|planet|moon|asteroid|station")
	createCmd.Flags().Float64Var(&mass, "mass", 0, "mass in kg")
	createCmd.Flags().Float32Var(&radius, "radius", 0, "radius in km")
	createCmd.Flags().StringVar(&color, "color", "#ffffff", "display color")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a celestial body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodDelete, "/api/celestial/"+args[0], nil))
		},
	})

	var speed float64
	simCmd := &cobra.Command{
		Use:   "set-speed",
		Short: "Set the celestial simulation speed multiplier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodPut, "/api/celestial/simulation", map[string]float64{"simulationSpeed": speed}))
		},
	}
	simCmd.Flags().Float64Var(&speed, "speed", 1, "simulation speed multiplier (0.1-1000)")
	cmd.AddCommand(simCmd)

	return cmd
}

func newFleetsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "fleets", Short: "Manage NPC fleets"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every NPC fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, "/api/npc/fleets", nil))
		},
	})

	var fleetType, location string
	var count int
	var nearestBody uint32
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Spawn an NPC fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"type": fleetType, "count": count, "location": location, "nearestCelestialBodyId": nearestBody,
			}
			return printResult(call(http.MethodPost, "/api/npc/fleets", body))
		},
	}
	createCmd.Flags().StringVar(&fleetType, "type", "civilian", "enemy|transport|civilian|mining")
	createCmd.Flags().IntVar(&count, "count", 1, "number of ships")
	createCmd.Flags().StringVar(&location, "location", "", "human-readable location label")
	createCmd.Flags().Uint32Var(&nearestBody, "body", 0, "nearest celestial body id")
	cmd.AddCommand(createCmd)

	return cmd
}

func newPlayersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List connected players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, "/api/players", nil))
		},
	}
}

func newAOICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "aoi",
		Short: "List areas of interest and their load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, "/api/aoi", nil))
		},
	}
}

func newLogsCommand() *cobra.Command {
	var limit int
	var level string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail server logs from the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, fmt.Sprintf("/api/logs?limit=%d&level=%s", limit, level), nil))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max entries to return")
	cmd.Flags().StringVar(&level, "level", "", "filter by level (info|error|debug)")
	return cmd
}

func newStatsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recent stat samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, fmt.Sprintf("/api/stats?limit=%d", limit), nil))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max samples to return")
	return cmd
}

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Read or change runtime settings"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodGet, "/api/settings", nil))
		},
	})

	var maxPlayers, tickRate int
	var aoiRadius float64
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Apply a partial settings update",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := map[string]interface{}{}
			if cmd.Flags().Changed("max-players") {
				patch["maxPlayers"] = maxPlayers
			}
			if cmd.Flags().Changed("tick-rate") {
				patch["tickRate"] = tickRate
			}
			if cmd.Flags().Changed("aoi-radius") {
				patch["aoiRadius"] = aoiRadius
			}
			if len(patch) == 0 {
				return fmt.Errorf("no fields given, nothing to change")
			}
			return printResult(call(http.MethodPut, "/api/settings", patch))
		},
	}
	setCmd.Flags().IntVar(&maxPlayers, "max-players", 0, "new max player count")
	setCmd.Flags().IntVar(&tickRate, "tick-rate", 0, "new simulation tick rate (Hz)")
	setCmd.Flags().Float64Var(&aoiRadius, "aoi-radius", 0, "new AOI broadcast radius")
	cmd.AddCommand(setCmd)

	return cmd
}

func newEmergencyStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "emergency-stop",
		Short: "Disconnect every client and flush the world to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodPost, "/api/emergency-stop", nil))
		},
	}
}

func newSimPlayersCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "simplayers", Short: "Manage load-test simulated players"}

	var count int
	var areaID string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Spawn simulated players",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"count": count, "areaId": areaID}
			return printResult(call(http.MethodPost, "/api/simulated-players", body))
		},
	}
	addCmd.Flags().IntVar(&count, "count", 1, "number of simulated players to spawn")
	addCmd.Flags().StringVar(&areaID, "area", "", "area of interest to spawn into")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every simulated player",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(call(http.MethodDelete, "/api/simulated-players", nil))
		},
	})

	return cmd
}
