package main

import (
	"context"
	"flag"

	"github.com/joshp123/mideactl/internal/appliance"
	"github.com/joshp123/mideactl/internal/config"
	"github.com/joshp123/mideactl/internal/control"
	"github.com/joshp123/mideactl/internal/credfile"
)

type app struct {
	dispatcher *control.Dispatcher
	cfg        *config.Config
	out        outputMode
}

// stringList collects a repeatable flag value.
type stringList []string

func (l *stringList) String() string {
	return ""
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// cloudFlags registers the cloud credential flags every subcommand
// shares, defaulting to the configured account and app identity.
func (a *app) cloudFlags(flags *flag.FlagSet) *control.CloudAuth {
	auth := &control.CloudAuth{}
	flags.StringVar(&auth.Account, "account", a.cfg.Cloud.Account, "cloud account")
	flags.StringVar(&auth.Password, "password", a.cfg.Cloud.Password, "cloud account password")
	flags.StringVar(&auth.AppKey, "appkey", a.cfg.Cloud.AppKey, "cloud app key")
	flags.StringVar(&auth.AppID, "appid", a.cfg.Cloud.AppID, "cloud app id (must correspond to the app key)")
	return auth
}

func (a *app) discover(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("discover", flag.ExitOnError)
	cloud := a.cloudFlags(flags)
	showCreds := flags.Bool("credentials", false, "show token/key in output")
	savePath := flags.String("save", "", "write discovered credentials to FILE")
	var networks stringList
	flags.Var(&networks, "network", "network range to scan, repeatable (default: all local ranges)")
	_ = flags.Parse(args)

	if cloud.Account == "" || cloud.Password == "" {
		return usagef("discover: --account and --password are required")
	}

	reports, err := a.dispatcher.Discover(ctx, *cloud, networks)
	if err != nil {
		return err
	}
	if *savePath != "" {
		entries := make([]credfile.Entry, 0, len(reports))
		for _, r := range reports {
			entries = append(entries, credfile.Entry{
				Address: r.Info.Address,
				ID:      r.Info.ID,
				Token:   r.Info.Token,
				Key:     r.Info.Key,
			})
		}
		if err := credfile.Save(*savePath, entries); err != nil {
			return err
		}
	}
	return a.out.printReports(reports, *showCreds)
}

func (a *app) status(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	addr, direct, cloud, credsFile, showCreds := a.targetFlags(flags)
	_ = flags.Parse(args)

	if err := a.fillFromCredsFile(addr, direct, *credsFile); err != nil {
		return err
	}
	if *addr == "" {
		return usagef("status: --ip is required")
	}

	report, err := a.dispatcher.Status(ctx, *addr, *direct, *cloud)
	if err != nil {
		return err
	}
	return a.out.printReport(report, *showCreds)
}

func (a *app) set(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("set", flag.ExitOnError)
	addr, direct, cloud, credsFile, showCreds := a.targetFlags(flags)
	humidity := flags.Int("humidity", -1, "target humidity")
	fan := flags.String("fan", "", "fan strength (silent|medium|turbo or a level)")
	mode := flags.String("mode", "", "mode (set|continuous|smart|dry or a code)")
	ion := flags.String("ion", "", "ion mode switch (true|false)")
	on := flags.String("on", "", "turn on/off (true|false)")
	_ = flags.Parse(args)

	if err := a.fillFromCredsFile(addr, direct, *credsFile); err != nil {
		return err
	}
	if *addr == "" {
		return usagef("set: --ip is required")
	}

	mutation, err := buildMutation(*humidity, *fan, *mode, *ion, *on)
	if err != nil {
		return usagef("set: %v", err)
	}

	report, err := a.dispatcher.Set(ctx, *addr, *direct, *cloud, mutation)
	if err != nil {
		return err
	}
	return a.out.printReport(report, *showCreds)
}

func (a *app) targetFlags(flags *flag.FlagSet) (addr *string, direct *control.DirectAuth, cloud *control.CloudAuth, credsFile *string, showCreds *bool) {
	addr = flags.String("ip", "", "IP address of the appliance")
	direct = &control.DirectAuth{}
	flags.StringVar(&direct.Token, "token", "", "token used to communicate with the appliance")
	flags.StringVar(&direct.Key, "key", "", "key used to communicate with the appliance")
	cloud = a.cloudFlags(flags)
	credsFile = flags.String("creds-file", "", "credentials file written by discover --save")
	showCreds = flags.Bool("credentials", false, "show token/key in output")
	return addr, direct, cloud, credsFile, showCreds
}

// fillFromCredsFile supplies token/key from a saved credentials file
// when the operator gave none. Explicit flags always win.
func (a *app) fillFromCredsFile(addr *string, direct *control.DirectAuth, path string) error {
	if path == "" || direct.Token != "" {
		return nil
	}
	entries, err := credfile.Load(path)
	if err != nil {
		return err
	}
	if entry, ok := credfile.Lookup(entries, *addr); ok {
		direct.Token = entry.Token
		direct.Key = entry.Key
	}
	return nil
}

func buildMutation(humidity int, fan, mode, ion, on string) (appliance.Mutation, error) {
	var m appliance.Mutation
	if humidity >= 0 {
		m.TargetHumidity = &humidity
	}
	if fan != "" {
		level, err := parseFan(fan)
		if err != nil {
			return appliance.Mutation{}, err
		}
		m.FanSpeed = &level
	}
	if mode != "" {
		code, err := parseMode(mode)
		if err != nil {
			return appliance.Mutation{}, err
		}
		m.Mode = &code
	}
	if ion != "" {
		value, err := parseSwitch("ion", ion)
		if err != nil {
			return appliance.Mutation{}, err
		}
		m.IonMode = &value
	}
	if on != "" {
		value, err := parseSwitch("on", on)
		if err != nil {
			return appliance.Mutation{}, err
		}
		m.Running = &value
	}
	return m, nil
}
