package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/opsbot/common/trace"
	"github.com/bdobrica/opsbot/internal/opsbot/commands"
	"github.com/bdobrica/opsbot/internal/opsbot/compute"
	"github.com/bdobrica/opsbot/internal/opsbot/store"
)

// noProviderMessage is sent when a vm command arrives but no compute backend
// was configured at startup.
const noProviderMessage = "No compute backend is configured; VM commands are unavailable."

// HandleListVMs lists managed instances, filtered by --state and --size.
func (h *Handlers) HandleListVMs(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	if h.provider == nil {
		out(noProviderMessage)
		return
	}
	traceID := trace.GenerateID()

	filter := compute.ListFilter{
		States: params.Values("state"),
		Sizes:  params.Values("size"),
	}
	instances, err := h.provider.List(ctx, filter)
	if err != nil {
		h.store.WriteAudit(ctx, traceID, sender, "vm.list", "", "error", nil, err.Error())
		out(fmt.Sprintf("An error occurred listing the VMs: %v", err))
		return
	}

	if err := h.store.WriteAudit(ctx, traceID, sender, "vm.list", "", "success",
		store.AuditPayload{"count": len(instances)}, ""); err != nil {
		slog.Warn("audit write failed", "action", "vm.list", "trace", traceID, "err", err)
	}

	if len(instances) == 0 {
		out(fmt.Sprintf("There are currently no matching VMs. (trace: %s)", traceID))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*VMs (%d)*\n\n", len(instances))
	for _, inst := range instances {
		fmt.Fprintf(&sb, "%s *%s* (%s)\n", stateMarker(inst.State), inst.Name, inst.State)
		fmt.Fprintf(&sb, "  ID: %s\n", shortID(inst.ID))
		if inst.OSName != "" {
			fmt.Fprintf(&sb, "  OS: %s\n", inst.OSName)
		}
		if inst.Size != "" {
			fmt.Fprintf(&sb, "  Size: %s\n", inst.Size)
		}
		if inst.Address != "" {
			fmt.Fprintf(&sb, "  Address: %s\n", inst.Address)
		}
		if !inst.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "  Created: %s\n", inst.CreatedAt.Format(time.RFC3339))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "(trace: %s)", traceID)
	out(sb.String())
}

// HandleCreateVM creates a new instance from --os_name, --size, and --name.
func (h *Handlers) HandleCreateVM(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	if h.provider == nil {
		out(noProviderMessage)
		return
	}
	traceID := trace.GenerateID()

	osName := params.Get("os_name", "")
	if osName == "" && h.cfg != nil {
		osName = h.cfg.DefaultImage
	}
	if osName == "" {
		out("Usage: create-vm --os_name=<os_name> [--size=<size>] [--name=<name>]")
		return
	}

	image := ""
	if h.cfg != nil {
		image = h.cfg.Images[osName]
	}
	if image == "" {
		known := "none"
		if h.cfg != nil && len(h.cfg.ImageNames()) > 0 {
			known = strings.Join(h.cfg.ImageNames(), ", ")
		}
		out(fmt.Sprintf("Unknown OS `%s`. Available: %s", osName, known))
		return
	}

	size := params.Get("size", "")
	if size == "" && h.cfg != nil {
		size = h.cfg.DefaultSize
	}

	spec := compute.CreateSpec{
		Name:   params.Get("name", ""),
		OSName: osName,
		Image:  image,
		Size:   size,
		Owner:  sender,
	}

	inst, err := h.provider.Create(ctx, spec)
	if err != nil {
		h.store.WriteAudit(ctx, traceID, sender, "vm.create", osName, "error", nil, err.Error())
		out(fmt.Sprintf("An error occurred creating the VM: %v", err))
		return
	}

	if err := h.store.WriteAudit(ctx, traceID, sender, "vm.create", inst.Name, "success",
		store.AuditPayload{"os_name": osName, "size": size}, ""); err != nil {
		slog.Warn("audit write failed", "action", "vm.create", "trace", traceID, "err", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully created VM *%s*\n", inst.Name)
	fmt.Fprintf(&sb, "  ID: %s\n", shortID(inst.ID))
	fmt.Fprintf(&sb, "  OS: %s\n", inst.OSName)
	if inst.Size != "" {
		fmt.Fprintf(&sb, "  Size: %s\n", inst.Size)
	}
	if inst.Address != "" {
		fmt.Fprintf(&sb, "  Address: %s\n", inst.Address)
	}
	fmt.Fprintf(&sb, "(trace: %s)", traceID)
	out(sb.String())
}

// HandleModifyVM starts, stops, or terminates the instance named by --vm-id.
// Exactly one action flag must be present.
func (h *Handlers) HandleModifyVM(ctx context.Context, out commands.OutputFunc, sender string, params commands.Params) {
	if h.provider == nil {
		out(noProviderMessage)
		return
	}
	traceID := trace.GenerateID()

	vmID := params.Get("vm-id", "")
	if vmID == "" {
		out("Usage: modify-vm --vm-id=<vm-id> (--start | --stop | --terminate)")
		return
	}

	var action string
	var op func(context.Context, string) error
	flags := 0
	if params.Has("start") {
		action, op = "vm.start", h.provider.Start
		flags++
	}
	if params.Has("stop") {
		action, op = "vm.stop", h.provider.Stop
		flags++
	}
	if params.Has("terminate") {
		action, op = "vm.terminate", h.provider.Terminate
		flags++
	}
	if flags != 1 {
		out("Specify exactly one of --start, --stop, or --terminate.")
		return
	}

	if err := op(ctx, vmID); err != nil {
		h.store.WriteAudit(ctx, traceID, sender, action, vmID, "error", nil, err.Error())
		if errors.Is(err, compute.ErrNotFound) {
			out(fmt.Sprintf("No VM with ID `%s` was found.", vmID))
			return
		}
		out(fmt.Sprintf("An error occurred modifying the VM: %v", err))
		return
	}

	if err := h.store.WriteAudit(ctx, traceID, sender, action, vmID, "success", nil, ""); err != nil {
		slog.Warn("audit write failed", "action", action, "trace", traceID, "err", err)
	}
	out(fmt.Sprintf("VM `%s`: %s succeeded. (trace: %s)", vmID, strings.TrimPrefix(action, "vm."), traceID))
}

func stateMarker(state compute.InstanceState) string {
	switch state {
	case compute.StateRunning:
		return "✅"
	case compute.StateStopped:
		return "⏹️"
	case compute.StatePending:
		return "🔄"
	case compute.StateTerminated:
		return "❌"
	default:
		return "❓"
	}
}

// shortID truncates provider IDs to the 12-character form used in chat.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
