package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"wowserver/internal/client"
	"wowserver/internal/config"
	"wowserver/internal/controller"
	"wowserver/internal/logger"
	"wowserver/internal/models"
)

const usage = `commands:
  create <account> <password> [admin]   register an account
  login <account> <password>
  logout
  chars                                  list your characters
  draft                                  show the default new character
  add <name> <race> <class>              create a character
  delete <name>
  deactivate <name> | reactivate <name>
  save                                   write activation changes
  all                                    list every character (admin)
  level <name> <level>                   set a character level (admin)
  regions | region <tag>
  help | quit`

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	url := flag.String("url", cfg.ServerURL, "service websocket URL")
	flag.Parse()

	if err := logger.Init(cfg.LogDir); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	svc, err := client.Dial(ctx, *url)
	cancel()
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer svc.Close()

	ctl := controller.New(svc)
	if cfg.Region != "" {
		if _, err := ctl.SetRegion(cfg.Region); err != nil {
			log.Printf("REGION ignored: %v", err)
		}
	}
	repl(ctl, os.Stdin, os.Stdout, svc.Done())
	if err := svc.Err(); err != nil {
		logger.Connection().WithError(err).Info("connection ended")
	}
}

func repl(ctl *controller.Controller, in io.Reader, out io.Writer, gone <-chan struct{}) {
	sc := bufio.NewScanner(in)
	fmt.Fprintln(out, usage)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return
		}
		select {
		case <-gone:
			fmt.Fprintln(out, "connection lost")
			return
		default:
		}
		args := strings.Fields(sc.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := run(ctx, ctl, out, args); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		cancel()
	}
}

func run(ctx context.Context, ctl *controller.Controller, out io.Writer, args []string) error {
	need := func(n int) error {
		if len(args)-1 < n {
			return fmt.Errorf("%s needs %d argument(s); try help", args[0], n)
		}
		return nil
	}
	switch args[0] {
	case "help":
		fmt.Fprintln(out, usage)
	case "create":
		if err := need(2); err != nil {
			return err
		}
		admin := len(args) > 3 && args[3] == "admin"
		if err := ctl.CreateAccount(ctx, args[1], args[2], admin); err != nil {
			return err
		}
		fmt.Fprintf(out, "account %s created\n", args[1])
	case "login":
		if err := need(2); err != nil {
			return err
		}
		s, err := ctl.Login(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "welcome %s (%s)\n", s.Account, s.Role)
		printCharacters(out, ctl.Player().Characters)
	case "logout":
		return ctl.Logout(ctx)
	case "chars":
		chars, err := ctl.AccountCharacters(ctx)
		if err != nil {
			return err
		}
		printCharacters(out, chars)
	case "draft":
		d, err := ctl.NewCharacterDraft()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "faction %s, default %s %s, races %v, death knights allowed: %t\n",
			d.ActiveFaction, d.Character.Race, d.Character.Class, d.Races, d.DeathKnightAllowed)
	case "add":
		if err := need(3); err != nil {
			return err
		}
		race, err := models.ParseRace(args[2])
		if err != nil {
			return err
		}
		class, err := models.ParseClass(args[3])
		if err != nil {
			return err
		}
		ch := models.Character{Race: race}
		if err := ch.SetName(args[1]); err != nil {
			return err
		}
		if !ch.SetClass(class) {
			return fmt.Errorf("a %s cannot be a %s", race, class)
		}
		return ctl.AddCharacter(ctx, ch)
	case "delete":
		if err := need(1); err != nil {
			return err
		}
		return ctl.DeleteCharacter(ctx, args[1])
	case "deactivate":
		if err := need(1); err != nil {
			return err
		}
		return ctl.DeactivateCharacter(args[1])
	case "reactivate":
		if err := need(1); err != nil {
			return err
		}
		return ctl.ReactivateCharacter(args[1])
	case "save":
		return ctl.SaveAccountCharacterData(ctx)
	case "all":
		chars, err := ctl.AllCharacters(ctx)
		if err != nil {
			return err
		}
		printCharacters(out, chars)
	case "level":
		if err := need(2); err != nil {
			return err
		}
		level, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("level: %w", err)
		}
		all, err := ctl.AllCharacters(ctx)
		if err != nil {
			return err
		}
		for _, ch := range all {
			if strings.EqualFold(ch.Name, args[1]) {
				ch.Level = level
				return ctl.UpdateCharacterLevels(ctx, []models.Character{ch})
			}
		}
		return fmt.Errorf("no character named %s", args[1])
	case "regions":
		for _, r := range ctl.Regions() {
			fmt.Fprintln(out, r)
		}
		fmt.Fprintf(out, "current: %s\n", ctl.Region())
	case "region":
		if err := need(1); err != nil {
			return err
		}
		tag, err := ctl.SetRegion(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "region set to %s\n", tag)
	default:
		return fmt.Errorf("unknown command %q; try help", args[0])
	}
	return nil
}

func printCharacters(out io.Writer, chars []models.Character) {
	if len(chars) == 0 {
		fmt.Fprintln(out, "(no characters)")
		return
	}
	for _, ch := range chars {
		state := "active"
		if !ch.Active {
			state = "inactive"
		}
		if ch.Account != "" {
			fmt.Fprintf(out, "[%s] ", ch.Account)
		}
		fmt.Fprintf(out, "%s (%s, %s)\n", ch, ch.Faction(), state)
	}
}
