package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arzzra/embedded_ua/pkg/agent"
	"github.com/arzzra/embedded_ua/pkg/config"
	"github.com/arzzra/embedded_ua/pkg/corelog"
	"github.com/arzzra/embedded_ua/pkg/timer"
	"github.com/arzzra/embedded_ua/pkg/transport"
)

type cliHandler struct{ logger corelog.Logger }

func (h *cliHandler) OnStateChanged(old, new agent.AgentState) {
	h.logger.Info("agent state changed", corelog.F("old", old.String()), corelog.F("new", new.String()))
}
func (h *cliHandler) OnRegisterResult(ok bool, statusCode int, reason string) {
	h.logger.Info("register result", corelog.F("ok", ok), corelog.F("status", statusCode), corelog.F("reason", reason))
}
func (h *cliHandler) OnIncomingCall(d *agent.Dialog) {
	h.logger.Info("incoming call", corelog.F("call_id", d.CallID))
}
func (h *cliHandler) OnDialogStateChanged(d *agent.Dialog, old, new agent.DialogState) {
	h.logger.Info("dialog state changed", corelog.F("call_id", d.CallID), corelog.F("old", old.String()), corelog.F("new", new.String()))
}
func (h *cliHandler) OnRemoteSDP(d *agent.Dialog, sdp string) {}
func (h *cliHandler) OnError(err error)                       { h.logger.Error("agent error", err) }

func buildAgent(cfg *config.Config) (*agent.Agent, transport.Transport, *timer.Service, error) {
	tr, err := transport.New(transport.Options{Kind: transport.KindUDP, LocalAddr: fmt.Sprintf(":%d", cfg.LocalPort)})
	if err != nil {
		return nil, nil, nil, err
	}
	timers := timer.New()
	logger := corelog.New(nil, true)
	h := &cliHandler{logger: logger}
	a, err := agent.Create(cfg.AgentConfig(), tr, timers, h, logger, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, tr, timers, nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the configured account and keep refreshing until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		a, tr, timers, err := buildAgent(cfg)
		if err != nil {
			return err
		}
		defer timers.Shutdown()
		defer tr.Close()

		ctx := cmd.Context()
		if err := a.Start(ctx); err != nil {
			return err
		}
		for {
			if _, err := tr.Tick(100); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return a.Stop(context.Background())
			case <-time.After(10 * time.Millisecond):
			}
		}
	},
}
