package tools

import (
	"context"
	"fmt"
)

var (
	ticketTypes    = []string{"bug", "feature", "task", "epic"}
	ticketStatuses = []string{"open", "in_progress", "blocked", "closed"}
	priorities     = []string{"low", "medium", "high", "critical"}

	// ticketUpdateFields is the single source of truth for what
	// update_ticket may change; the empty-update error lists exactly these.
	ticketUpdateFields = []field{
		f("title"), f("description"), f("status"), f("type"), f("priority"), f("parent"),
	}
)

func keyParam(name, description string, required bool) Param {
	return Param{
		Name:        name,
		Type:        TypeString,
		Description: description,
		Required:    required,
		Pattern:     TicketKeyPattern,
	}
}

func userParam() Param {
	return Param{
		Name:        "user",
		Type:        TypeString,
		Description: "Display name of the acting user. Defaults to the configured service account.",
	}
}

func (r *Registry) definitions() []Tool {
	return []Tool{
		{
			Name:        "create_ticket",
			Description: "Create a ticket in the tracker.",
			Params: []Param{
				{Name: "title", Type: TypeString, Description: "Ticket title.", Required: true},
				{Name: "type", Type: TypeString, Description: "Ticket type.", Required: true, Enum: ticketTypes},
				{Name: "description", Type: TypeString, Description: "Longer ticket description."},
				{Name: "project", Type: TypeString, Description: "Project key the ticket belongs to."},
				keyParam("parent", "Key of the parent ticket (for sub-tasks of an epic).", false),
				{Name: "priority", Type: TypeString, Description: "Ticket priority.", Enum: priorities},
				userParam(),
			},
			Handler: r.createTicket,
		},
		{
			Name:        "get_ticket",
			Description: "Fetch a single ticket by key.",
			Params: []Param{
				keyParam("key", "Ticket key, e.g. DATA-7.", true),
			},
			Handler: r.getTicket,
		},
		{
			Name:        "update_ticket",
			Description: "Update fields of an existing ticket.",
			Params: []Param{
				keyParam("key", "Ticket key, e.g. DATA-7.", true),
				{Name: "title", Type: TypeString, Description: "New title."},
				{Name: "description", Type: TypeString, Description: "New description."},
				{Name: "status", Type: TypeString, Description: "New status.", Enum: ticketStatuses},
				{Name: "type", Type: TypeString, Description: "New type.", Enum: ticketTypes},
				{Name: "priority", Type: TypeString, Description: "New priority.", Enum: priorities},
				keyParam("parent", "New parent ticket key.", false),
				userParam(),
			},
			Handler: r.updateTicket,
		},
		{
			Name:        "delete_ticket",
			Description: "Delete a ticket by key.",
			Params: []Param{
				keyParam("key", "Ticket key, e.g. DATA-7.", true),
				userParam(),
			},
			Handler: r.deleteTicket,
		},
		{
			Name:        "list_tickets",
			Description: "List tickets, optionally filtered. Closed tickets are excluded unless includeClosed is true.",
			Params: []Param{
				{Name: "project", Type: TypeString, Description: "Filter by project key."},
				{Name: "status", Type: TypeString, Description: "Filter by status.", Enum: ticketStatuses},
				{Name: "type", Type: TypeString, Description: "Filter by type.", Enum: ticketTypes},
				{Name: "includeClosed", Type: TypeBoolean, Description: "Include closed tickets in the listing."},
				{Name: "limit", Type: TypeInteger, Description: "Maximum number of tickets per page."},
			},
			Handler: r.listTickets,
		},
		{
			Name:        "list_projects",
			Description: "List all projects.",
			Params:      []Param{},
			Handler:     r.listProjects,
		},
		{
			Name:        "create_project",
			Description: "Create a project.",
			Params: []Param{
				{Name: "name", Type: TypeString, Description: "Project name.", Required: true},
				{Name: "description", Type: TypeString, Description: "Project description."},
				userParam(),
			},
			Handler: r.createProject,
		},
		{
			Name:        "add_comment",
			Description: "Add a comment to a ticket.",
			Params: []Param{
				keyParam("key", "Ticket key, e.g. DATA-7.", true),
				{Name: "text", Type: TypeString, Description: "Comment text.", Required: true},
				userParam(),
			},
			Handler: r.addComment,
		},
		{
			Name:        "add_code_reference",
			Description: "Attach a code reference (file and optional line) to a ticket.",
			Params: []Param{
				keyParam("key", "Ticket key, e.g. DATA-7.", true),
				{Name: "file", Type: TypeString, Description: "Path of the referenced file.", Required: true},
				{Name: "line", Type: TypeInteger, Description: "Line number within the file."},
				{Name: "description", Type: TypeString, Description: "What the reference points at."},
				userParam(),
			},
			Handler: r.addCodeReference,
		},
		{
			Name:        "remove_code_reference",
			Description: "Remove a code reference from a ticket.",
			Params: []Param{
				keyParam("key", "Ticket key, e.g. DATA-7.", true),
				{Name: "referenceId", Type: TypeString, Description: "Identifier of the code reference.", Required: true},
				userParam(),
			},
			Handler: r.removeCodeReference,
		},
		{
			Name:        "list_activity",
			Description: "List the activity timeline, optionally scoped to one ticket.",
			Params: []Param{
				keyParam("ticket", "Restrict the timeline to this ticket key.", false),
				{Name: "limit", Type: TypeInteger, Description: "Maximum number of activity entries."},
			},
			Handler: r.listActivity,
		},
		{
			Name:        "test_connection",
			Description: "Verify connectivity and credentials against the tracker.",
			Params:      []Param{},
			Handler:     r.testConnection,
		},
	}
}

func (r *Registry) createTicket(ctx context.Context, args Args) (any, error) {
	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}

	body := buildBody(args, []field{
		f("title"), f("type"), f("description"), f("project"), f("parent"), f("priority"),
	})
	embedActor(body, actor)

	return r.client.Post(ctx, "/tickets", body)
}

func (r *Registry) getTicket(ctx context.Context, args Args) (any, error) {
	return r.client.Get(ctx, "/tickets/"+args.String("key"), nil)
}

func (r *Registry) updateTicket(ctx context.Context, args Args) (any, error) {
	body := buildBody(args, ticketUpdateFields)
	if len(body) == 0 {
		// Reject before resolving identity so a no-op update issues no
		// network call at all.
		return nil, fmt.Errorf("nothing to update: supply at least one of %s", fieldNames(ticketUpdateFields))
	}

	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}
	embedActor(body, actor)

	return r.client.Put(ctx, "/tickets/"+args.String("key"), body)
}

func (r *Registry) deleteTicket(ctx context.Context, args Args) (any, error) {
	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	embedActor(body, actor)

	key := args.String("key")
	if _, err := r.client.Delete(ctx, "/tickets/"+key, body); err != nil {
		return nil, err
	}
	return map[string]any{"status": "ok", "message": fmt.Sprintf("ticket %s deleted", key)}, nil
}

func (r *Registry) listTickets(ctx context.Context, args Args) (any, error) {
	params := buildQuery(args, []field{
		f("project"), f("status"), f("type"), f("includeClosed"), f("limit"),
	})
	return r.client.Get(ctx, "/tickets", params)
}

func (r *Registry) listProjects(ctx context.Context, args Args) (any, error) {
	return r.client.Get(ctx, "/projects", nil)
}

func (r *Registry) createProject(ctx context.Context, args Args) (any, error) {
	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}

	body := buildBody(args, []field{f("name"), f("description")})
	embedActor(body, actor)

	return r.client.Post(ctx, "/projects", body)
}

func (r *Registry) addComment(ctx context.Context, args Args) (any, error) {
	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}

	body := buildBody(args, []field{f("text")})
	embedActor(body, actor)

	return r.client.Post(ctx, "/tickets/"+args.String("key")+"/comments", body)
}

func (r *Registry) addCodeReference(ctx context.Context, args Args) (any, error) {
	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}

	body := buildBody(args, []field{f("file"), f("line"), f("description")})
	embedActor(body, actor)

	return r.client.Post(ctx, "/tickets/"+args.String("key")+"/code-references", body)
}

func (r *Registry) removeCodeReference(ctx context.Context, args Args) (any, error) {
	actor, err := r.resolver.Resolve(ctx, args.String("user"))
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	embedActor(body, actor)

	key := args.String("key")
	referenceID := args.String("referenceId")
	if _, err := r.client.Delete(ctx, "/tickets/"+key+"/code-references/"+referenceID, body); err != nil {
		return nil, err
	}
	return map[string]any{"status": "ok", "message": fmt.Sprintf("code reference %s removed from %s", referenceID, key)}, nil
}

func (r *Registry) listActivity(ctx context.Context, args Args) (any, error) {
	params := buildQuery(args, []field{
		renamed("ticket", "ticketKey"), f("limit"),
	})
	return r.client.Get(ctx, "/activity", params)
}

func (r *Registry) testConnection(ctx context.Context, args Args) (any, error) {
	if _, err := r.client.Get(ctx, "/projects", nil); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  "ok",
		"message": fmt.Sprintf("connected to %s", r.client.BaseURL()),
	}, nil
}
