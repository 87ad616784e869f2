package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Wavecall/internal/call"
	"github.com/BioHazard786/Wavecall/internal/chat"
	"github.com/BioHazard786/Wavecall/internal/config"
	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
	"github.com/BioHazard786/Wavecall/internal/ui"
	"github.com/BioHazard786/Wavecall/internal/utils"
)

var (
	flagName        string
	flagDomain      string
	flagSTUN        string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagTURNCredURL string
	flagRelay       bool
	flagNoMedia     bool
	flagPlain       bool
)

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a call, or start a new one",
	Long: `Join an existing room, or start a fresh one when no room is given.

Examples:
  wavecall join
  wavecall join happy-otter-ramen --name mallory
  wavecall join happy-otter-ramen --domain localhost:8080
  wavecall join happy-otter-ramen --relay --turn turn.example.com --turn-user u --turn-pass p`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := ""
		if len(args) == 1 {
			room = args[0]
		}
		return joinCall(room)
	},
}

func joinCall(room string) error {
	name, err := participantName()
	if err != nil {
		return err
	}

	relay := flagRelay
	if !relay && utils.ShouldForceRelay() {
		ui.PrintWarning("VPN or CGNAT detected, forcing TURN relay")
		relay = true
	}

	cfg, err := config.Load(config.Options{
		Domain:      flagDomain,
		STUNServer:  flagSTUN,
		TURNServer:  flagTURN,
		TURNUser:    flagTURNUser,
		TURNPass:    flagTURNPass,
		TURNCredURL: flagTURNCredURL,
		ForceRelay:  relay,
	})
	if err != nil {
		return err
	}
	if cfg.ForceRelay && cfg.TURNServer == "" && cfg.TURNCredURL == "" {
		return fmt.Errorf("cannot force relay mode without a TURN server configured")
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()

	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to server: %w", err)
	}

	ice, err := cfg.ICEConfig()
	if err != nil {
		client.Close()
		return err
	}
	stopSpinner()

	if flagPlain {
		return runPlainCall(client, ice, room, name)
	}
	return runCallView(client, ice, room, name)
}

// runCallView drives the interactive Bubble Tea call screen.
func runCallView(client *signaling.Client, ice rtc.Config, room, name string) error {
	var program *tea.Program

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := call.Join(ctx, call.Options{
		Room:         room,
		Name:         name,
		Transport:    client,
		Capability:   rtc.NewEngine(),
		ICE:          ice,
		DisableMedia: flagNoMedia,
		OnRoster: func(roster []call.Participant) {
			if program != nil {
				program.Send(ui.RosterMsg(roster))
			}
		},
		OnChat: func(msg chat.Message) {
			if program != nil {
				program.Send(ui.ChatMsg(msg))
			}
		},
		OnTyping: func(sender string) {
			if program != nil {
				program.Send(ui.TypingMsg(sender))
			}
		},
		OnError: func(reason string) {
			if program != nil {
				program.Send(ui.SignalingErrMsg(reason))
			}
		},
	})
	if err != nil {
		client.Close()
		return err
	}

	if room == "" {
		fmt.Println(ui.NewRoomInfo(session.Room()).View())
	}

	model := ui.NewCallModel(session, session.Room(), name)
	program = tea.NewProgram(model)
	program.Send(ui.RosterMsg(session.Roster().Snapshot()))

	go func() {
		<-session.Done()
		program.Send(ui.SessionEndedMsg{})
	}()

	if _, err := program.Run(); err != nil {
		session.Close()
		return err
	}
	session.Close()

	fmt.Println()
	ui.RenderCallSummary(model.Summary())
	return nil
}

// runPlainCall joins without the TUI: roster and chat go straight to stdout.
// Useful for logs, narrow terminals and scripting.
func runPlainCall(client *signaling.Client, ice rtc.Config, room, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := call.Join(ctx, call.Options{
		Room:         room,
		Name:         name,
		Transport:    client,
		Capability:   rtc.NewEngine(),
		ICE:          ice,
		DisableMedia: flagNoMedia,
		OnRoster: func(roster []call.Participant) {
			ui.RenderPlainRoster(roster)
		},
		OnChat: func(msg chat.Message) {
			fmt.Printf("[%s] %s: %s\n", msg.SentAt.Format("15:04"), msg.Sender, msg.Text)
		},
		OnError: func(reason string) {
			ui.PrintErrorf("signaling error: %s", reason)
		},
	})
	if err != nil {
		client.Close()
		return err
	}

	ui.PrintSuccessf("Joined room %s as %s", session.Room(), name)
	if room == "" {
		ui.PrintInfof("Invite others with: wavecall join %s", session.Room())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	select {
	case <-sig:
		session.Close()
	case <-session.Done():
	}

	ui.PrintInfo("Call ended")
	return nil
}

// participantName resolves the local display name: flag first, then the OS
// account name.
func participantName() (string, error) {
	if flagName != "" {
		return flagName, nil
	}
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "", fmt.Errorf("could not determine a participant name, pass --name")
	}
	return u.Username, nil
}

func init() {
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name in the call (default: OS user name)")
	joinCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "signaling server domain or host:port")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server host")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().StringVar(&flagTURNCredURL, "turn-cred-url", "", "endpoint vending short-lived TURN credentials")
	joinCmd.Flags().BoolVar(&flagRelay, "relay", false, "force media through the TURN relay")
	joinCmd.Flags().BoolVar(&flagNoMedia, "no-media", false, "join without sending audio or video")
	joinCmd.Flags().BoolVar(&flagPlain, "plain", false, "plain output instead of the interactive view")

	rootCmd.AddCommand(joinCmd)
}
