package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/biso/functions/internal/devserver"
	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/handler"
	"github.com/biso/functions/internal/logging"
	"github.com/biso/functions/internal/router"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the functions and the settings they need",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeList(cmd.OutOrStdout())
		},
	}
}

func writeList(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREQUIRES\tDESCRIPTION")
	for _, r := range router.All() {
		sections := make([]string, len(r.Requires))
		for i, s := range r.Requires {
			sections[i] = string(s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, strings.Join(sections, ","), r.Description)
	}
	return tw.Flush()
}

func invokeCmd() *cobra.Command {
	var (
		bodyFile string
		data     string
		jwt      string
		remote   bool
		prefix   string
	)
	cmd := &cobra.Command{
		Use:   "invoke <function>",
		Short: "Call one function and print its reply",
		Long: `Call one function with a request body and print the JSON reply.

Examples:
  fnctl invoke verify-membership --data s1234567
  fnctl invoke create-order --body order.json
  fnctl invoke get-departments --remote --prefix biso-prod-`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			route, ok := router.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown function %q; see fnctl list", args[0])
			}
			body, err := readBody(cmd.InOrStdin(), bodyFile, data)
			if err != nil {
				return err
			}

			if remote {
				inv, err := router.NewInvoker(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				out, err := inv.Invoke(cmd.Context(), route.Name, body)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(route.Requires...); err != nil {
				return err
			}
			d := handler.NewDeps(cfg, logging.NewWithWriter(cmd.ErrOrStderr(), route.Name, cfg.Log.Level))

			req := handler.Request{Method: "POST", Body: body}
			if jwt != "" {
				req.Headers = map[string]string{handler.UserJWTHeader: jwt}
			}
			resp := handler.Run(cmd.Context(), d, route.Name, route.Handler, req)
			if err := printJSON(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			if resp.Status >= 400 {
				return fmt.Errorf("%s failed with status %d", route.Name, resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&bodyFile, "body", "b", "", "file holding the request body, - for stdin")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringVar(&jwt, "jwt", "", "user session token")
	cmd.Flags().BoolVar(&remote, "remote", false, "invoke the deployed Lambda instead")
	cmd.Flags().StringVar(&prefix, "prefix", "", "deployed function name prefix")
	return cmd
}

func readBody(stdin io.Reader, file, data string) ([]byte, error) {
	switch {
	case file != "" && data != "":
		return nil, fmt.Errorf("use either --body or --data")
	case data != "":
		return []byte(data), nil
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		return os.ReadFile(file)
	}
	return nil, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	var (
		addr   string
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every function over HTTP at /<name>",
		Long: `Serve every function on one local HTTP server.

Examples:
  fnctl serve --addr :8080
  fnctl serve --memory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.NewWithWriter(cmd.ErrOrStderr(), "devserver", cfg.Log.Level)
			d := handler.NewDeps(cfg, log)
			if memory {
				d.UseStore(docstore.NewMemory())
			}
			log.Info("serving functions", "addr", addr, "memory_store", memory, "functions", len(router.Names()))
			return devserver.New(d).Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&memory, "memory", false, "use an in-memory document store")
	return cmd
}
