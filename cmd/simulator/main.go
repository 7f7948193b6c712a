package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Development tool for exercising a running HealthGuide backend",
	Long: `simulator drives the HealthGuide API the way the web client does.

The OTP arrives by email (or in the server log when SMTP is not configured),
so account commands run in two steps: first without --otp to request a code,
then again with --otp to finish.

Examples:
  simulator signup --email=me@example.com --password=secret1 --name=Me
  simulator signup --email=me@example.com --password=secret1 --name=Me --otp=123456
  simulator chat --sessions=5 --turns=3
  simulator report --description="brown water from the tap" --photo=tap.jpg
  simulator facilities --location=Pune`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := "http://localhost:5000"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		defaultURL = envURL
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "backend base URL (env API_URL)")

	signupCmd.Flags().String("email", "", "account email (required)")
	signupCmd.Flags().String("password", "", "account password (required)")
	signupCmd.Flags().String("name", "Simulated User", "profile name")
	signupCmd.Flags().String("otp", "", "code from the email; omit to request one")
	signupCmd.MarkFlagRequired("email")
	signupCmd.MarkFlagRequired("password")

	loginCmd.Flags().String("email", "", "account email (required)")
	loginCmd.Flags().String("password", "", "account password (required)")
	loginCmd.Flags().String("otp", "", "code from the email; omit to request one")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("password")

	chatCmd.Flags().Int("sessions", 3, "concurrent chat sessions")
	chatCmd.Flags().Int("turns", 2, "messages per session")
	chatCmd.Flags().String("token", "", "bearer token; empty uses the public endpoint")
	chatCmd.Flags().Bool("keep", false, "keep the sessions instead of deleting them")

	reportCmd.Flags().String("issue", "contamination", "issue type")
	reportCmd.Flags().String("description", "Water from the tap is brown and smells odd", "report description")
	reportCmd.Flags().String("location", "Ward 12", "report location")
	reportCmd.Flags().String("photo", "", "path to a photo to attach")

	facilitiesCmd.Flags().String("location", "", "place to search near (required)")
	facilitiesCmd.MarkFlagRequired("location")

	rootCmd.AddCommand(signupCmd, loginCmd, chatCmd, reportCmd, facilitiesCmd)
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account through the OTP flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		code, _ := cmd.Flags().GetString("otp")

		client := NewAPIClient(apiURL)

		if code == "" {
			fmt.Print("Requesting signup code... ")
			if err := client.SendOTP(email, password, true); err != nil {
				fmt.Println("FAILED")
				return err
			}
			fmt.Println("OK")
			fmt.Println("Re-run with --otp=<code> once the code arrives.")
			return nil
		}

		fmt.Print("Verifying code and completing signup... ")
		result, err := client.Signup(email, password, code, name)
		if err != nil {
			fmt.Println("FAILED")
			return err
		}
		fmt.Println("OK")
		fmt.Println()
		fmt.Printf("  User ID: %s\n", result.User.ID)
		fmt.Printf("  Token:   %s\n", result.Token)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the OTP flow and print the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		code, _ := cmd.Flags().GetString("otp")

		client := NewAPIClient(apiURL)

		if code == "" {
			fmt.Print("Requesting login code... ")
			if err := client.SendOTP(email, password, false); err != nil {
				fmt.Println("FAILED")
				return err
			}
			fmt.Println("OK")
			fmt.Println("Re-run with --otp=<code> once the code arrives.")
			return nil
		}

		token, err := client.Login(email, password, code)
		if err != nil {
			return err
		}
		fmt.Printf("Token: %s\n", token)
		return nil
	},
}

var chatPrompts = []string{
	"I have had a mild fever since yesterday. What should I do?",
	"How much water should an adult drink in hot weather?",
	"What are the early signs of dehydration?",
	"Is it safe to drink boiled river water?",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run concurrent chat sessions and report latency",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, _ := cmd.Flags().GetInt("sessions")
		turns, _ := cmd.Flags().GetInt("turns")
		token, _ := cmd.Flags().GetString("token")
		keep, _ := cmd.Flags().GetBool("keep")

		if sessions < 1 || turns < 1 {
			return errors.New("--sessions and --turns must be at least 1")
		}

		client := NewAPIClient(apiURL)

		var (
			mu        sync.Mutex
			latencies []time.Duration
			limited   int
		)

		fmt.Printf("Running %d session(s) x %d turn(s)...\n\n", sessions, turns)

		var g errgroup.Group
		for i := 0; i < sessions; i++ {
			g.Go(func() error {
				sessionID := ""
				for turn := 0; turn < turns; turn++ {
					start := time.Now()
					reply, err := client.Chat(token, sessionID, chatPrompts[(i+turn)%len(chatPrompts)])
					elapsed := time.Since(start)

					var statusErr *StatusError
					if errors.As(err, &statusErr) && statusErr.Status == http.StatusTooManyRequests {
						mu.Lock()
						limited++
						mu.Unlock()
						continue
					}
					if err != nil {
						return fmt.Errorf("session %d turn %d: %w", i+1, turn+1, err)
					}

					sessionID = reply.SessionID
					mu.Lock()
					latencies = append(latencies, elapsed)
					mu.Unlock()
					fmt.Printf("  [%d/%d] %s turn %d (%s)\n", i+1, sessions, sessionID, turn+1, elapsed.Round(time.Millisecond))
				}

				if !keep && sessionID != "" {
					if err := client.DeleteSession(token, sessionID); err != nil {
						fmt.Printf("Warning: failed to delete %s: %v\n", sessionID, err)
					}
				}
				return nil
			})
		}
		err := g.Wait()

		fmt.Println()
		printLatency(latencies, limited)
		return err
	},
}

func printLatency(latencies []time.Duration, limited int) {
	fmt.Printf("  Answered:     %d\n", len(latencies))
	fmt.Printf("  Rate limited: %d\n", limited)
	if len(latencies) == 0 {
		return
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p := func(q float64) time.Duration {
		return latencies[int(q*float64(len(latencies)-1))].Round(time.Millisecond)
	}
	fmt.Printf("  p50: %s  p90: %s  max: %s\n", p(0.5), p(0.9), latencies[len(latencies)-1].Round(time.Millisecond))
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit a water quality report",
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, _ := cmd.Flags().GetString("issue")
		description, _ := cmd.Flags().GetString("description")
		location, _ := cmd.Flags().GetString("location")
		photo, _ := cmd.Flags().GetString("photo")

		client := NewAPIClient(apiURL)

		fmt.Print("Submitting report... ")
		result, err := client.SubmitReport(issue, description, location, photo)
		if err != nil {
			fmt.Println("FAILED")
			return err
		}
		fmt.Println("OK")
		fmt.Println()
		fmt.Printf("  Severity:   %s\n", result.TextAnalysis.Severity)
		fmt.Printf("  Suggestion: %s\n", result.TextAnalysis.Suggestion)
		fmt.Printf("  Image:      %s\n", result.ImageAnalysis.Class)
		if result.Data.Photo != nil {
			fmt.Printf("  Stored as:  %s\n", *result.Data.Photo)
		}
		return nil
	},
}

var facilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "List health facilities near a place",
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")

		result, err := NewAPIClient(apiURL).NearbyFacilities(location)
		if err != nil {
			return err
		}

		fmt.Println(result.Message)
		fmt.Println()
		for _, f := range result.Facilities {
			fmt.Printf("  %-30s %-14s %s (%s)\n", f.Name, f.Type, f.Address, f.Distance)
		}
		return nil
	},
}
