package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/ops"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// options holds the values of the persistent flags.
type options struct {
	configFile string
	target     client.Target
	verbose    bool
	jsonLog    bool
}

func newRootCommand() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:          "ncrpc",
		Short:        "Execute NETCONF RPCs against a device",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "configuration file (.yaml or .toml)")
	flags.StringVar((*string)(&o.target.Kind), "transport", string(client.TransportSSH), "transport: ssh, telnet or serial")
	flags.StringVarP(&o.target.Host, "host", "H", "", "device host name or address")
	flags.IntVarP(&o.target.Port, "port", "P", 0, "device port, defaults to 830 for ssh and 23 for telnet")
	flags.StringVarP(&o.target.Username, "username", "u", "", "user name")
	flags.StringVarP(&o.target.Password, "password", "p", "", "password")
	flags.StringVarP(&o.target.KeyFile, "key-file", "i", "", "ssh private key file")
	flags.StringVar(&o.target.KnownHostsFile, "known-hosts", "", "verify ssh host keys against a known_hosts file")
	flags.StringVar(&o.target.Device, "device", "", "serial device path")
	flags.IntVar(&o.target.Baud, "baud", client.DefaultBaud, "serial line speed")
	flags.StringVar(&o.target.Parity, "parity", "none", "serial parity: none, odd, even, mark or space")
	flags.StringVar(&o.target.Command, "command", "", "console command starting netconf after login")
	flags.DurationVar(&o.target.Timeout, "timeout", 10*time.Second, "connection timeout")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log protocol diagnostics")
	flags.BoolVar(&o.jsonLog, "json-log", false, "log in json format")

	rootCmd.AddCommand(
		newInvokeCommand(o),
		newGetConfigCommand(o),
		newConfigureCommand(o),
		newCapabilitiesCommand(o),
	)
	return rootCmd
}

// session loads the configuration, with flags taking precedence, and runs body
// with an open session.
func (o *options) session(cmd *cobra.Command, body func(s ops.OpSession) error) error {
	fc, err := loadConfig(o.configFile)
	if err != nil {
		return err
	}
	target := o.resolveTarget(cmd.Flags(), &fc.Target)
	if target.Host == "" && target.Device == "" {
		return errors.New("no target: supply --host, --device or a config file")
	}

	hooks := o.configureLogging(cmd.ErrOrStderr(), &fc.Log)
	ctx := client.WithClientTrace(cmd.Context(), hooks)
	return client.WithSession(ctx, client.OpenTarget(target, fc.Session.clientConfig()), func(s client.Session) error {
		return body(ops.Wrap(s))
	})
}

// resolveTarget overlays the flags set on the command line on the configured target.
func (o *options) resolveTarget(flags *pflag.FlagSet, configured *client.Target) *client.Target {
	t := *configured
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("transport", func() { t.Kind = o.target.Kind })
	set("host", func() { t.Host = o.target.Host })
	set("port", func() { t.Port = o.target.Port })
	set("username", func() { t.Username = o.target.Username })
	set("password", func() { t.Password = o.target.Password })
	set("key-file", func() { t.KeyFile = o.target.KeyFile })
	set("known-hosts", func() { t.KnownHostsFile = o.target.KnownHostsFile })
	set("device", func() { t.Device = o.target.Device })
	set("baud", func() { t.Baud = o.target.Baud })
	set("parity", func() { t.Parity = o.target.Parity })
	set("command", func() { t.Command = o.target.Command })
	if flags.Changed("timeout") || t.Timeout == 0 {
		t.Timeout = o.target.Timeout
	}
	if t.Kind == "" {
		t.Kind = o.target.Kind
	}
	return &t
}

func (o *options) configureLogging(w io.Writer, lc *logConfig) *client.ClientTrace {
	log.SetOutput(w)
	if o.jsonLog || lc.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if lvl, err := log.ParseLevel(lc.Level); err == nil {
		log.SetLevel(lvl)
	}
	if o.verbose {
		log.SetLevel(log.DebugLevel)
		return client.DiagnosticLoggingHooks
	}
	return client.DefaultLoggingHooks
}

func newInvokeCommand(o *options) *cobra.Command {
	var (
		params []string
		attrs  []string
		body   string
	)
	cmd := &cobra.Command{
		Use:   "invoke RPC",
		Short: "Execute any RPC by name",
		Long: "Execute any RPC by name. Parameters are given as name=value, or name alone for an empty element;\n" +
			"--xml supplies the operation content as an xml fragment instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := invokePayload(params, body)
			if err != nil {
				return err
			}
			attributes, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			return o.session(cmd, func(s ops.OpSession) error {
				reply, err := s.Invoke(cmd.Context(), args[0], payload, attributes)
				if err != nil {
					return err
				}
				return printReply(cmd.OutOrStdout(), reply)
			})
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "rpc parameter, name=value or name")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "attribute of the operation element, name=value")
	cmd.Flags().StringVar(&body, "xml", "", "operation content as an xml fragment")
	return cmd
}

func newGetConfigCommand(o *options) *cobra.Command {
	var source, filter, xpath string
	cmd := &cobra.Command{
		Use:   "get-config",
		Short: "Retrieve configuration from a datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f interface{}
			switch {
			case xpath != "":
				f = ops.Xpath{Select: xpath}
			case filter != "":
				f = filter
			}
			return o.session(cmd, func(s ops.OpSession) error {
				reply, err := s.GetConfig(cmd.Context(), source, f)
				if err != nil {
					return err
				}
				return printReply(cmd.OutOrStdout(), reply)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", ops.RunningCfg, "source datastore")
	cmd.Flags().StringVar(&filter, "filter", "", "subtree filter as an xml fragment")
	cmd.Flags().StringVar(&xpath, "xpath", "", "xpath filter")
	return cmd
}

func newConfigureCommand(o *options) *cobra.Command {
	var (
		datastore, defaultOp string
		noValidate           bool
	)
	cmd := &cobra.Command{
		Use:   "configure FILE",
		Short: "Apply configuration under a lock, committing candidate changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0]) //nolint: gosec
			if err != nil {
				return errors.Wrap(err, "failed to read configuration")
			}
			cfgOpts := []ops.ConfigureOption{ops.OnDatastore(datastore)}
			if defaultOp != "" {
				cfgOpts = append(cfgOpts, ops.WithEditOptions(ops.DefaultOperation(defaultOp)))
			}
			if noValidate {
				cfgOpts = append(cfgOpts, ops.WithoutValidate())
			}
			return o.session(cmd, func(s ops.OpSession) error {
				if err := ops.Configure(cmd.Context(), s, ops.Cfg(string(b)), cfgOpts...); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			})
		},
	}
	cmd.Flags().StringVar(&datastore, "datastore", ops.CandidateCfg, "datastore to configure")
	cmd.Flags().StringVar(&defaultOp, "default-operation", "", "edit-config default operation: merge, replace or none")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip validation of the candidate")
	return cmd
}

func newCapabilitiesCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the capabilities advertised by the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.session(cmd, func(s ops.OpSession) error {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "session-id: %d\nversion: %s\n", s.ID(), s.Version())
				for _, c := range s.ServerCapabilities().List() {
					fmt.Fprintln(w, c)
				}
				return nil
			})
		},
	}
}

// invokePayload builds the rpc payload from name=value parameters or an xml fragment.
func invokePayload(params []string, body string) (interface{}, error) {
	if body != "" {
		if len(params) > 0 {
			return nil, errors.New("--param and --xml cannot be combined")
		}
		return rpc.ParseFragment(body)
	}
	var p rpc.Params
	for _, param := range params {
		name, value, found := strings.Cut(param, "=")
		if strings.TrimSpace(name) == "" {
			return nil, errors.Errorf("invalid parameter %q", param)
		}
		if !found {
			p = append(p, rpc.P(name, rpc.Empty))
			continue
		}
		p = append(p, rpc.P(name, value))
	}
	return p, nil
}

func parseAttrs(attrs []string) (rpc.Attrs, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	a := rpc.Attrs{}
	for _, attr := range attrs {
		name, value, found := strings.Cut(attr, "=")
		if !found || name == "" {
			return nil, errors.Errorf("invalid attribute %q", attr)
		}
		a[name] = value
	}
	return a, nil
}

func printReply(w io.Writer, reply *common.Reply) error {
	out := reply.DataXML()
	if out == "" && reply.Ok {
		out = "ok"
	}
	_, err := fmt.Fprintln(w, out)
	return err
}
