package engine

import (
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/management"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// registerManagementTools wires management.Service into the tool registry
// as a handful of thread-lifecycle tools, giving every permission check in
// management.Service a real caller path from an ordinary tool_call — the
// calling context's Caller() is always the permission principal, so a
// prompt can never act as someone else.
func registerManagementTools(tools *tool.Registry, svc *management.Service) error {
	adds := []func(*tool.Registry, *management.Service) error{
		addGetThreadTool,
		addAddParticipantTool,
		addRemoveParticipantTool,
		addQuitControllerTool,
		addAddControllerTool,
		addRemoveControllerTool,
		addAddManagerTool,
		addRemoveManagerTool,
		addSetVisibilityTool,
		addSetStatusTool,
	}
	for _, add := range adds {
		if err := add(tools, svc); err != nil {
			return err
		}
	}
	return nil
}

func loadThread(ctx *ectx.BaseCtx, svc *management.Service, threadID string) (*types.ThreadMeta, error) {
	id, err := types.ParseXid(threadID)
	if err != nil {
		return nil, errs.Validation("engine.loadThread", "invalid thread_id", err)
	}
	return svc.Threads.Get(ctx, id)
}

type getThreadArgs struct {
	ThreadID string `json:"thread_id"`
}

type getThreadResult struct {
	ID              string   `json:"id"`
	Visibility      string   `json:"visibility"`
	Status          string   `json:"status"`
	Participants    []string `json:"participants"`
	MaxParticipants int      `json:"max_participants"`
}

func addGetThreadTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("get_thread", "Reads a thread's metadata if the caller has read access.", true, false,
		func(ctx *ectx.BaseCtx, args getThreadArgs, _ []types.Resource) (getThreadResult, []types.Resource, error) {
			id, err := types.ParseXid(args.ThreadID)
			if err != nil {
				return getThreadResult{}, nil, errs.Validation("get_thread", "invalid thread_id", err)
			}
			meta, err := svc.GetThread(ctx, ctx.Caller(), id)
			if err != nil {
				return getThreadResult{}, nil, err
			}
			participants := make([]string, 0, len(meta.Participants))
			for p := range meta.Participants {
				participants = append(participants, p)
			}
			return getThreadResult{
				ID:              meta.ID.String(),
				Visibility:      visibilityName(meta.Visibility),
				Status:          statusName(meta.Status),
				Participants:    participants,
				MaxParticipants: meta.MaxParticipants,
			}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

type addParticipantArgs struct {
	ThreadID  string `json:"thread_id"`
	Principal string `json:"principal"`
	Role      string `json:"role"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func addAddParticipantTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("add_participant", "Adds a principal to a thread's roster; requires manage permission.", true, false,
		func(ctx *ectx.BaseCtx, args addParticipantArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			principal, err := types.ParsePrincipal(args.Principal)
			if err != nil {
				return okResult{}, nil, errs.Validation("add_participant", "invalid principal", err)
			}
			if err := svc.AddParticipant(ctx, ctx.Caller(), meta, principal, args.Role); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

type removeParticipantArgs struct {
	ThreadID  string `json:"thread_id"`
	Principal string `json:"principal"`
}

func addRemoveParticipantTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("remove_participant", "Removes a principal from a thread's roster; requires manage permission.", true, false,
		func(ctx *ectx.BaseCtx, args removeParticipantArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			principal, err := types.ParsePrincipal(args.Principal)
			if err != nil {
				return okResult{}, nil, errs.Validation("remove_participant", "invalid principal", err)
			}
			if err := svc.RemoveParticipant(ctx, ctx.Caller(), meta, principal); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

type quitControllerArgs struct {
	ThreadID string `json:"thread_id"`
}

func addQuitControllerTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("quit_controller", "Lets the calling principal give up their controller seat on a thread.", true, false,
		func(ctx *ectx.BaseCtx, args quitControllerArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			if err := svc.QuitController(ctx, ctx.Caller(), meta); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

type promoteArgs struct {
	ThreadID  string `json:"thread_id"`
	Principal string `json:"principal"`
}

func addAddControllerTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("add_controller", "Promotes a participant to controller; requires control permission.", true, false,
		func(ctx *ectx.BaseCtx, args promoteArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			principal, err := types.ParsePrincipal(args.Principal)
			if err != nil {
				return okResult{}, nil, errs.Validation("add_controller", "invalid principal", err)
			}
			if err := svc.AddController(ctx, ctx.Caller(), meta, principal); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

func addRemoveControllerTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("remove_controller", "Demotes a controller back to an ordinary participant; requires control permission.", true, false,
		func(ctx *ectx.BaseCtx, args promoteArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			principal, err := types.ParsePrincipal(args.Principal)
			if err != nil {
				return okResult{}, nil, errs.Validation("remove_controller", "invalid principal", err)
			}
			if err := svc.RemoveController(ctx, ctx.Caller(), meta, principal); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

func addAddManagerTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("add_manager", "Promotes a participant to manager; requires control permission.", true, false,
		func(ctx *ectx.BaseCtx, args promoteArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			principal, err := types.ParsePrincipal(args.Principal)
			if err != nil {
				return okResult{}, nil, errs.Validation("add_manager", "invalid principal", err)
			}
			if err := svc.AddManager(ctx, ctx.Caller(), meta, principal); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

func addRemoveManagerTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("remove_manager", "Demotes a manager back to an ordinary participant; requires control permission.", true, false,
		func(ctx *ectx.BaseCtx, args promoteArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			principal, err := types.ParsePrincipal(args.Principal)
			if err != nil {
				return okResult{}, nil, errs.Validation("remove_manager", "invalid principal", err)
			}
			if err := svc.RemoveManager(ctx, ctx.Caller(), meta, principal); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

type setVisibilityArgs struct {
	ThreadID   string `json:"thread_id"`
	Visibility string `json:"visibility"` // "private" or "public"
}

func addSetVisibilityTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("set_visibility", "Sets a thread's visibility; requires control permission.", true, false,
		func(ctx *ectx.BaseCtx, args setVisibilityArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			vis, err := parseVisibility(args.Visibility)
			if err != nil {
				return okResult{}, nil, err
			}
			if err := svc.SetVisibility(ctx, ctx.Caller(), meta, vis); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

type setStatusArgs struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"` // "active", "archived", or "closed"
}

func addSetStatusTool(tools *tool.Registry, svc *management.Service) error {
	t, err := tool.NewTypedTool("set_thread_status", "Sets a thread's lifecycle status; requires control permission.", true, false,
		func(ctx *ectx.BaseCtx, args setStatusArgs, _ []types.Resource) (okResult, []types.Resource, error) {
			meta, err := loadThread(ctx, svc, args.ThreadID)
			if err != nil {
				return okResult{}, nil, err
			}
			status, err := parseStatus(args.Status)
			if err != nil {
				return okResult{}, nil, err
			}
			if err := svc.SetStatus(ctx, ctx.Caller(), meta, status); err != nil {
				return okResult{}, nil, err
			}
			return okResult{OK: true}, nil, nil
		})
	if err != nil {
		return err
	}
	return tools.Add(t)
}

func visibilityName(v types.Visibility) string {
	if v == types.VisibilityPublic {
		return "public"
	}
	return "private"
}

func parseVisibility(s string) (types.Visibility, error) {
	switch s {
	case "public":
		return types.VisibilityPublic, nil
	case "private":
		return types.VisibilityPrivate, nil
	default:
		return 0, errs.Validation("engine.parseVisibility", "visibility must be \"public\" or \"private\"", nil)
	}
}

func statusName(s types.ThreadStatus) string {
	switch s {
	case types.ThreadArchived:
		return "archived"
	case types.ThreadClosed:
		return "closed"
	default:
		return "active"
	}
}

func parseStatus(s string) (types.ThreadStatus, error) {
	switch s {
	case "active":
		return types.ThreadActive, nil
	case "archived":
		return types.ThreadArchived, nil
	case "closed":
		return types.ThreadClosed, nil
	default:
		return 0, errs.Validation("engine.parseStatus", "status must be \"active\", \"archived\", or \"closed\"", nil)
	}
}
