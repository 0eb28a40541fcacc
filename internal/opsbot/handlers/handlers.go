// Package handlers implements opsbot's chat command handlers. Each handler
// reports its outcome — success or failure — through the output callback; the
// dispatcher never inspects handler results.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bdobrica/opsbot/common/trace"
	"github.com/bdobrica/opsbot/common/version"
	"github.com/bdobrica/opsbot/internal/opsbot/commands"
	"github.com/bdobrica/opsbot/internal/opsbot/compute"
	"github.com/bdobrica/opsbot/internal/opsbot/config"
	"github.com/bdobrica/opsbot/internal/opsbot/store"
)

// Handlers holds the command handlers and their dependencies.
type Handlers struct {
	store    *store.Store
	provider compute.Provider
	cfg      *config.Config
}

// New creates a Handlers instance. provider may be nil, in which case the
// vm commands report that no compute backend is configured.
func New(s *store.Store, provider compute.Provider, cfg *config.Config) *Handlers {
	return &Handlers{store: s, provider: provider, cfg: cfg}
}

// Register declares every command's metadata and inserts it into the
// registry. Must run to completion before the general help cache is built.
func (h *Handlers) Register(reg *commands.Registry) {
	reg.Register(h.HandleHello,
		commands.NewMeta("hello", "Greet the bot").
			Alias("hi"))

	reg.Register(h.HandleVersion,
		commands.NewMeta("version", "Show bot version information"))

	reg.Register(h.HandlePing,
		commands.NewMeta("ping", "Health check with audit round-trip"))

	reg.Register(h.HandleListVMs,
		commands.NewMeta("list-vms", "List managed VMs, optionally filtered by state or size").
			Arg(&commands.ArgSpec{
				Name:        "state",
				Description: "Comma-separated list of states to include",
				Choices:     commands.StaticList(compute.States()...),
				Default:     commands.Static(string(compute.StateRunning)),
			}).
			Arg(&commands.ArgSpec{
				Name:        "size",
				Description: "Comma-separated list of sizes to include",
				Choices:     commands.ProducerList(h.sizeChoices),
			}).
			Example("list-vms").
			Example("list-vms --state=running,stopped --size=small").
			Alias("vms", "list-vm"))

	reg.Register(h.HandleCreateVM,
		commands.NewMeta("create-vm", "Create a new VM from the image catalogue").
			Arg(&commands.ArgSpec{
				Name:        "os_name",
				Required:    true,
				Description: "Operating system to boot",
				Choices:     commands.ProducerList(h.imageChoices),
				Default:     commands.Producer(h.defaultImage),
			}).
			Arg(&commands.ArgSpec{
				Name:        "size",
				Description: "Instance size",
				Choices:     commands.ProducerList(h.sizeChoices),
				Default:     commands.Producer(h.defaultSize),
			}).
			Arg(&commands.ArgSpec{
				Name:        "name",
				Description: "Instance name (generated when omitted)",
			}).
			Example("create-vm --os_name=fedora --size=small").
			Example("create-vm --os_name=centos --name=build-box").
			Alias("vm-create"))

	reg.Register(h.HandleModifyVM,
		commands.NewMeta("modify-vm", "Start, stop, or terminate a VM").
			Arg(&commands.ArgSpec{
				Name:        "vm-id",
				Required:    true,
				Description: "Instance ID to modify",
			}).
			Arg(&commands.ArgSpec{
				Name:        "start",
				Description: "Start the instance",
			}).
			Arg(&commands.ArgSpec{
				Name:        "stop",
				Description: "Stop the instance",
			}).
			Arg(&commands.ArgSpec{
				Name:        "terminate",
				Description: "Stop and remove the instance",
			}).
			Example("modify-vm --vm-id=abc123 --stop").
			Example("modify-vm --vm-id=abc123 --terminate").
			Alias("vm-modify"))

	reg.Register(h.HandleTeamLinks,
		commands.NewMeta("list-team-links", "Show the team link directory").
			Alias("links", "team-links"))

	reg.Register(h.HandleAuditTail,
		commands.NewMeta("audit-tail", "Show recent audit entries").
			Arg(&commands.ArgSpec{
				Name:        "n",
				Description: "Number of entries to show",
				Default:     commands.Static("10"),
			}).
			Example("audit-tail --n=20"))
}

// --- choice and default producers over the config map ---

func (h *Handlers) imageChoices() ([]string, error) {
	if h.cfg == nil {
		return nil, fmt.Errorf("no bot config loaded")
	}
	names := h.cfg.ImageNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("image map is empty")
	}
	return names, nil
}

func (h *Handlers) sizeChoices() ([]string, error) {
	if h.cfg == nil {
		return nil, fmt.Errorf("no bot config loaded")
	}
	names := h.cfg.SizeNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("size catalogue is empty")
	}
	return names, nil
}

func (h *Handlers) defaultImage() (string, error) {
	if h.cfg == nil {
		return "", fmt.Errorf("no bot config loaded")
	}
	return h.cfg.DefaultImage, nil
}

func (h *Handlers) defaultSize() (string, error) {
	if h.cfg == nil {
		return "", fmt.Errorf("no bot config loaded")
	}
	return h.cfg.DefaultSize, nil
}

// --- general handlers ---

// HandleHello greets the requesting user.
func (h *Handlers) HandleHello(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	out(fmt.Sprintf("Hello <@%s>! How can I assist you today?", sender))
}

// HandleVersion shows version information.
func (h *Handlers) HandleVersion(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	out("*opsbot*\n" + version.Info())
}

// HandlePing responds with a health check and writes an audit entry.
func (h *Handlers) HandlePing(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	traceID := trace.GenerateID()
	if err := h.store.WriteAudit(ctx, traceID, sender, "ping", "", "success", nil, ""); err != nil {
		out(fmt.Sprintf("Pong, but the audit write failed: %v", err))
		return
	}
	out(fmt.Sprintf("🏓 Pong! (trace: %s)", traceID))
}

// HandleTeamLinks shows the team link directory from the bot config.
func (h *Handlers) HandleTeamLinks(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	if h.cfg == nil {
		out("No team links configured.")
		return
	}
	out(h.cfg.FormatTeamLinks())
}

// HandleAuditTail shows recent audit entries.
func (h *Handlers) HandleAuditTail(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	limit := 10
	if n, err := strconv.Atoi(params.Get("n", "10")); err == nil {
		limit = n
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	entries, err := h.store.GetAuditLog(ctx, limit)
	if err != nil {
		slog.Error("audit-tail query failed", "err", err)
		out(fmt.Sprintf("An error occurred reading the audit log: %v", err))
		return
	}
	if len(entries) == 0 {
		out("The audit log is empty.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Recent Audit Entries (last %d)*\n\n", limit)
	for _, entry := range entries {
		marker := "✅"
		if entry.Result == "error" {
			marker = "❌"
		}
		fmt.Fprintf(&sb, "%s `%s` *%s* by %s\n",
			marker, entry.Timestamp.Format("15:04:05"), entry.Action, entry.Actor)
		if entry.Target.Valid {
			fmt.Fprintf(&sb, "   Target: %s\n", entry.Target.String)
		}
		if entry.ErrorMessage.Valid {
			fmt.Fprintf(&sb, "   Error: %s\n", entry.ErrorMessage.String)
		}
		fmt.Fprintf(&sb, "   Trace: %s\n\n", entry.TraceID)
	}
	out(strings.TrimSpace(sb.String()))
}
