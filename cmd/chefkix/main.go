package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/app"
	"github.com/you/chefkix/internal/config"
)

const usage = `usage: chefkix <command> [args]

commands:
  login -u <identifier> -p <password>
  logout
  status
  cook start <recipeId> | next | prev | goto <step> | done <step> | pause | resume | abandon | run
  chat <conversationId>
  notifications [-watch]
  block <userId> | unblock <userId>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	c, err := app.NewContainer(cfg, app.NewLogNotifier(os.Stdout))
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Restore(ctx); err != nil {
		log.Fatalf("restore: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd != "login" && !c.Auth.IsAuthenticated() {
		log.Fatal("not logged in, run: chefkix login -u <identifier> -p <password>")
	}

	switch cmd {
	case "login":
		err = login(ctx, c, args)
	case "logout":
		c.Auth.Logout(ctx)
		fmt.Println("logged out")
	case "status":
		status(c)
	case "cook":
		err = cook(ctx, c, args)
	case "chat":
		err = chat(ctx, c, args)
	case "notifications":
		err = notifications(ctx, c, args)
	case "block", "unblock":
		err = block(ctx, c, cmd, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func login(ctx context.Context, c *app.Container, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	identifier := fs.String("u", "", "username or email")
	password := fs.String("p", os.Getenv("CHEFKIX_PASSWORD"), "password (or CHEFKIX_PASSWORD)")
	fs.Parse(args)
	if *identifier == "" || *password == "" {
		return errors.New("both -u and -p are required")
	}

	user, err := c.Login(ctx, *identifier, *password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", user.Username)
	return c.Cooking.Restore(ctx)
}

func status(c *app.Container) {
	snap := c.Auth.Snapshot()
	if snap.User != nil {
		fmt.Printf("user:     %s (%s)\n", snap.User.Username, snap.User.ID)
	}
	printSession(c.Cooking.Session())
	if blocked := c.Blocked.List(); len(blocked) > 0 {
		fmt.Printf("blocked:  %s\n", strings.Join(blocked, ", "))
	}
}

func printSession(s *domain.CookingSession) {
	if s == nil {
		fmt.Println("cooking:  no session")
		return
	}
	fmt.Printf("cooking:  %s [%s] step %d/%d\n", titleOf(s), s.Status, s.CurrentStepIndex+1, s.StepCount())
	if s.StepCount() > 0 {
		step := s.Steps[s.CurrentStepIndex]
		fmt.Printf("          %s\n", step.Instruction)
	}
	for idx, t := range s.Timers {
		state := "running"
		if !t.IsRunning {
			state = "stopped"
		}
		fmt.Printf("          timer step %d: %s left (%s)\n", idx+1, time.Duration(t.RemainingSeconds)*time.Second, state)
	}
}

func titleOf(s *domain.CookingSession) string {
	if s.RecipeTitle != "" {
		return s.RecipeTitle
	}
	return s.RecipeID
}

func cook(ctx context.Context, c *app.Container, args []string) error {
	if len(args) == 0 {
		return errors.New("missing cook subcommand")
	}

	var err error
	switch args[0] {
	case "start":
		if len(args) < 2 {
			return errors.New("usage: cook start <recipeId>")
		}
		_, err = c.Cooking.Start(ctx, args[1])
	case "next":
		err = c.Cooking.Navigate(ctx, domain.DirectionNext)
	case "prev":
		err = c.Cooking.Navigate(ctx, domain.DirectionPrevious)
	case "goto", "done":
		if len(args) < 2 {
			return fmt.Errorf("usage: cook %s <step>", args[0])
		}
		step, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return fmt.Errorf("invalid step %q", args[1])
		}
		if args[0] == "goto" {
			err = c.Cooking.GoToStep(ctx, step-1)
		} else {
			var reward *domain.CompletionReward
			reward, err = c.Cooking.CompleteStep(ctx, step-1)
			if reward != nil {
				fmt.Printf("+%d XP (total %d), streak %d days\n", reward.XPAwarded, reward.TotalXP, reward.StreakDays)
			}
		}
	case "pause":
		err = c.Cooking.Pause(ctx)
	case "resume":
		err = c.Cooking.Resume(ctx)
	case "abandon":
		err = c.Cooking.Abandon(ctx)
	case "run":
		return runSession(ctx, c)
	default:
		return fmt.Errorf("unknown cook subcommand %q", args[0])
	}
	if err != nil {
		return err
	}
	printSession(c.Cooking.Session())
	return nil
}

// runSession keeps the process alive so timers tick, reading commands from stdin.
func runSession(ctx context.Context, c *app.Container) error {
	printSession(c.Cooking.Session())
	fmt.Println("commands: next, prev, goto N, done N, pause, resume, timer N, stop N, abandon, quit")

	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				printSession(c.Cooking.Session())
				continue
			}
			var err error
			switch fields[0] {
			case "quit", "exit":
				return nil
			case "timer", "stop":
				if len(fields) < 2 {
					fmt.Println("which step?")
					continue
				}
				step, convErr := strconv.Atoi(fields[1])
				if convErr != nil {
					fmt.Println("invalid step")
					continue
				}
				if fields[0] == "timer" {
					err = c.Cooking.StartTimer(step - 1)
				} else {
					err = c.Cooking.StopTimer(step - 1)
				}
				if err == nil {
					printSession(c.Cooking.Session())
				}
			default:
				err = cook(ctx, c, fields)
			}
			if err != nil {
				fmt.Printf("error: %s\n", domain.UserMessage(err))
			}
			if c.Cooking.Status().IsTerminal() || c.Cooking.Session() == nil {
				return nil
			}
		}
	}
}

func chat(ctx context.Context, c *app.Container, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: chat <conversationId>")
	}

	stream, err := c.Chat.OpenConversation(ctx, args[0])
	if err != nil {
		return err
	}
	defer stream.Close()

	shown := 0
	render := func() {
		msgs := stream.Messages()
		for ; shown < len(msgs); shown++ {
			m := msgs[shown]
			fmt.Printf("%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Sender, m.Body)
		}
	}
	render()
	fmt.Printf("-- %s, type to send, /older for history, /quit to leave --\n", stream.ConnectionState())

	changes := stream.Subscribe()
	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			render()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
			case "/quit":
				return nil
			case "/older":
				if err := stream.LoadOlder(ctx); err != nil {
					fmt.Printf("error: %s\n", domain.UserMessage(err))
				}
				// older messages are prepended; print the whole list again
				shown = 0
				render()
			default:
				if _, err := stream.Send(ctx, line); err != nil {
					fmt.Printf("not sent: %s\n", domain.UserMessage(err))
				}
			}
		}
	}
}

func notifications(ctx context.Context, c *app.Container, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ExitOnError)
	watch := fs.Bool("watch", false, "keep polling until interrupted")
	readAll := fs.Bool("read-all", false, "mark every notification read")
	fs.Parse(args)

	if *readAll {
		c.Notifications.Refresh(ctx)
		if err := c.Notifications.MarkAllRead(ctx); err != nil {
			return err
		}
	}
	if !*watch {
		c.Notifications.Refresh(ctx)
		fmt.Printf("unread: %d\n", c.Notifications.Unread())
		return nil
	}

	c.Notifications.StartPolling(ctx)
	defer c.Notifications.StopPolling()

	last := -1
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if n := c.Notifications.Unread(); n != last {
			fmt.Printf("unread: %d\n", n)
			last = n
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func block(ctx context.Context, c *app.Container, cmd string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <userId>", cmd)
	}
	if cmd == "block" {
		return c.Blocked.Block(ctx, args[0])
	}
	return c.Blocked.Unblock(ctx, args[0])
}

func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
