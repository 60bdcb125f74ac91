package main

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/app"
)

const gatewayName = "gateway"

func serveCmd(load loader) *cobra.Command {
	var onLambda bool

	names := append([]string{gatewayName}, app.Services...)
	cmd := &cobra.Command{
		Use:   "serve <service>",
		Short: "Run one service",
		Long: fmt.Sprintf(`Run one service over HTTP until interrupted, or as a Lambda handler.

Services: %s`, strings.Join(names, ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !slices.Contains(names, name) {
				return fmt.Errorf("unknown service %q", name)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := load(ctx, name)
			if err != nil {
				return err
			}

			var r *gin.Engine
			if name == gatewayName {
				r = a.Gateway()
			} else {
				srv, err := a.ServiceServer(name)
				if err != nil {
					return err
				}
				r = srv.Engine()
			}

			if onLambda {
				app.ServeLambda(r)
				return nil
			}
			return app.Serve(ctx, r, a.Config.HTTP, a.Logger)
		},
	}

	cmd.Flags().BoolVar(&onLambda, "lambda", false, "serve API Gateway proxy events instead of HTTP")
	return cmd
}
