package store

import "context"

type InsertDomainEventParams struct {
	Topic       string
	AggregateID int64
	Payload     []byte
}

const insertDomainEvent = `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_id, payload, occurred_at`

func (q *Queries) InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error) {
	var ev DomainEvent
	err := q.db.QueryRow(ctx, insertDomainEvent, arg.Topic, arg.AggregateID, arg.Payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}

type InsertAuditLogParams struct {
	ActorKind    string
	ActorID      *string
	Action       string
	ResourceType string
	ResourceID   *string
	Method       string
	Path         string
	Route        *string
	Status       int32
	IP           *string
	UserAgent    *string
	RequestID    *string
	Metadata     []byte
}

const insertAuditLog = `INSERT INTO audit_logs (actor_kind, actor_id, action, resource_type, resource_id, method, path,
	route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	var metadata any
	if len(arg.Metadata) > 0 {
		metadata = arg.Metadata
	}
	_, err := q.db.Exec(ctx, insertAuditLog, arg.ActorKind, arg.ActorID, arg.Action, arg.ResourceType,
		arg.ResourceID, arg.Method, arg.Path, arg.Route, arg.Status, arg.IP, arg.UserAgent, arg.RequestID, metadata)
	return err
}

type ListAuditLogsParams struct {
	Limit  int32
	Offset int32
}

const listAuditLogs = `SELECT id, actor_kind, actor_id, action, resource_type, resource_id, method, path, route,
	status, ip, user_agent, request_id, metadata, occurred_at
FROM audit_logs
ORDER BY occurred_at DESC, id DESC
LIMIT $1 OFFSET $2`

func (q *Queries) ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLogs, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []AuditLog{}
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.ID, &a.ActorKind, &a.ActorID, &a.Action, &a.ResourceType, &a.ResourceID, &a.Method,
			&a.Path, &a.Route, &a.Status, &a.IP, &a.UserAgent, &a.RequestID, &a.Metadata, &a.OccurredAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
