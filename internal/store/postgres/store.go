package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const displayCodePad = 3

type Store struct {
	pool     *pgxpool.Pool
	location *time.Location
}

type Options struct {
	Location *time.Location
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		pool:     pool,
		location: loc,
	}
}

func (s *Store) IssueTicket(ctx context.Context, input store.IssueTicketInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findTicketByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	if err = ensureTramiteActive(ctx, tx, input.TramiteID); err != nil {
		return models.Ticket{}, false, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	prefix := models.CodePrefix(input.PriorityClass)
	day := createdAt.In(s.location).Format("2006-01-02")
	seq, err := nextDailySeq(ctx, tx, prefix, day)
	if err != nil {
		return models.Ticket{}, false, err
	}
	displayCode := fmt.Sprintf("%s-%0*d", prefix, displayCodePad, seq)

	ticketID := uuid.NewString()

	var ticket models.Ticket
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (
			ticket_id, request_id, display_code, priority_class, tramite_id, note,
			status, daily_seq, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING ticket_id, display_code, priority_class, tramite_id, note, status, daily_seq, created_at, request_id
	`, ticketID, input.RequestID, displayCode, input.PriorityClass, input.TramiteID, input.Note, models.StatusQueued, seq, createdAt)
	if err = row.Scan(&ticket.TicketID, &ticket.DisplayCode, &ticket.PriorityClass, &ticket.TramiteID, &ticket.Note, &ticket.Status, &ticket.DailySeq, &ticket.CreatedAt, &ticket.RequestID); err != nil {
		return models.Ticket{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventTicketIssued, ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}

	return ticket, true, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, store.ErrTicketNotFound
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ListQueue(ctx context.Context, dayStart time.Time) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'queued' AND created_at >= $1
		ORDER BY (priority_class = 'preferential') DESC, created_at ASC, daily_seq ASC
	`, dayStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTickets(rows)
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call_next", input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrEmptyQueue
		}
		return existing, false, nil
	}

	if err = ensureStationActive(ctx, tx, input.StationID); err != nil {
		return models.Ticket{}, false, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}
	dayStart := input.DayStart
	if dayStart.IsZero() {
		dayStart = startOfDay(calledAt, s.location)
	}

	// Serialize concurrent call-next attempts for the same station so the
	// single-in-service-per-station invariant holds under racing panels.
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, input.StationID); err != nil {
		return models.Ticket{}, false, err
	}

	var busy bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tickets
			WHERE station_id = $1 AND status = 'in_service'
		)
	`, input.StationID)
	if err = row.Scan(&busy); err != nil {
		return models.Ticket{}, false, err
	}
	if busy {
		err = store.ErrStationBusy
		return models.Ticket{}, false, err
	}

	ticket, err := updateNextTicket(ctx, tx, input.StationID, calledAt, dayStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, input.StationID, ""); err != nil {
				return models.Ticket{}, false, err
			}
			if err = tx.Commit(ctx); err != nil {
				return models.Ticket{}, false, err
			}
			return models.Ticket{}, false, store.ErrEmptyQueue
		}
		return models.Ticket{}, false, err
	}

	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, input.StationID, ticket.TicketID); err != nil {
		return models.Ticket{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventTicketCalled, ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}

	return ticket, true, nil
}

func (s *Store) RepeatCall(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "repeat", input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrInvalidTransition
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	// Repeat only moves the announcement marker; state, called_at, and
	// finished_at stay untouched.
	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET last_announced_at = $2
		WHERE ticket_id = $1 AND status = 'in_service'
		RETURNING `+ticketColumnsQualified("tickets")+`
	`, input.TicketID, occurredAt)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissedUpdate(ctx, tx, input.TicketID)
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}

	if input.StationID != "" && (ticket.StationID == nil || *ticket.StationID != input.StationID) {
		err = store.ErrStationMismatch
		return models.Ticket{}, false, err
	}

	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, "repeat", input.RequestID, input.StationID, ticket.TicketID); err != nil {
		return models.Ticket{}, false, err
	}

	// The display consumes the same announcement event as a first call.
	if err = insertOutboxEvent(ctx, tx, store.EventTicketCalled, ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}

	return ticket, true, nil
}

func (s *Store) FinalizeTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.closeTicket(ctx, input, "finalize", models.StatusFinished, store.EventTicketFinalized)
}

func (s *Store) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.closeTicket(ctx, input, "cancel", models.StatusCancelled, store.EventTicketCancelled)
}

func (s *Store) closeTicket(ctx context.Context, input store.TicketActionInput, action, toStatus, eventType string) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrInvalidTransition
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	fromFilter := "status = 'in_service'"
	if action == "cancel" {
		fromFilter = "status IN ('queued', 'in_service')"
	}

	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET status = $2,
			finished_at = $3
		WHERE ticket_id = $1 AND `+fromFilter+`
		RETURNING `+ticketColumnsQualified("tickets")+`
	`, input.TicketID, toStatus, occurredAt)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissedUpdate(ctx, tx, input.TicketID)
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}

	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, action, input.RequestID, input.StationID, ticket.TicketID); err != nil {
		return models.Ticket{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, eventType, ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}

	return ticket, true, nil
}

func (s *Store) GetActiveTicket(ctx context.Context, stationID string) (models.Ticket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE station_id = $1 AND status = 'in_service'
		ORDER BY called_at DESC
		LIMIT 1
	`, stationID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) MonitorState(ctx context.Context, dayStart time.Time, historyLimit int) (store.MonitorState, error) {
	if historyLimit <= 0 {
		historyLimit = 5
	}

	state := store.MonitorState{}

	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'in_service' AND last_announced_at IS NOT NULL AND created_at >= $1
		ORDER BY last_announced_at DESC
		LIMIT 1
	`, dayStart)
	current, err := scanTicket(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.MonitorState{}, err
	}
	if err == nil {
		state.Current = &current
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE called_at IS NOT NULL AND created_at >= $1
		ORDER BY last_announced_at DESC
		LIMIT $2
	`, dayStart, historyLimit)
	if err != nil {
		return store.MonitorState{}, err
	}
	defer rows.Close()

	history, err := scanTickets(rows)
	if err != nil {
		return store.MonitorState{}, err
	}
	state.History = history

	return state, nil
}

func (s *Store) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_id, name, active, COALESCE(operator, '')
		FROM stations
		WHERE active = TRUE
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var station models.Station
		if err := rows.Scan(&station.StationID, &station.Name, &station.Active, &station.Operator); err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

func (s *Store) ListTramites(ctx context.Context) ([]models.Tramite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tramite_id, name, active
		FROM tramites
		WHERE active = TRUE
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tramites []models.Tramite
	for rows.Next() {
		var tramite models.Tramite
		if err := rows.Scan(&tramite.TramiteID, &tramite.Name, &tramite.Active); err != nil {
			return nil, err
		}
		tramites = append(tramites, tramite)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tramites, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
	`
	args := []interface{}{}
	if !after.IsZero() {
		query += " WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.TicketEvent
	for rows.Next() {
		var event store.TicketEvent
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

const ticketColumns = `ticket_id, display_code, priority_class, tramite_id, note, status, daily_seq, created_at, station_id, called_at, last_announced_at, finished_at`

func ticketColumnsQualified(table string) string {
	return table + `.ticket_id, ` + table + `.display_code, ` + table + `.priority_class, ` + table + `.tramite_id, ` + table + `.note, ` + table + `.status, ` + table + `.daily_seq, ` + table + `.created_at, ` + table + `.station_id, ` + table + `.called_at, ` + table + `.last_announced_at, ` + table + `.finished_at`
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var ticket models.Ticket
	var stationIDNull sql.NullString
	var calledAtNull sql.NullTime
	var announcedAtNull sql.NullTime
	var finishedAtNull sql.NullTime
	if err := row.Scan(&ticket.TicketID, &ticket.DisplayCode, &ticket.PriorityClass, &ticket.TramiteID, &ticket.Note, &ticket.Status, &ticket.DailySeq, &ticket.CreatedAt, &stationIDNull, &calledAtNull, &announcedAtNull, &finishedAtNull); err != nil {
		return models.Ticket{}, err
	}
	ticket.StationID = nullStringPtr(stationIDNull)
	ticket.CalledAt = nullTimePtr(calledAtNull)
	ticket.LastAnnouncedAt = nullTimePtr(announcedAtNull)
	ticket.FinishedAt = nullTimePtr(finishedAtNull)
	return ticket, nil
}

func scanTickets(rows pgx.Rows) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func updateNextTicket(ctx context.Context, tx pgx.Tx, stationID string, calledAt, dayStart time.Time) (models.Ticket, error) {
	ticket, err := updateNextTicketWithFilter(ctx, tx, stationID, calledAt, dayStart, "AND priority_class = 'preferential'")
	if err == nil || !errors.Is(err, pgx.ErrNoRows) {
		return ticket, err
	}
	return updateNextTicketWithFilter(ctx, tx, stationID, calledAt, dayStart, "")
}

func updateNextTicketWithFilter(ctx context.Context, tx pgx.Tx, stationID string, calledAt, dayStart time.Time, filter string) (models.Ticket, error) {
	query := `
		WITH next_ticket AS (
			SELECT ticket_id
			FROM tickets
			WHERE status = 'queued' AND created_at >= $3 ` + filter + `
			ORDER BY created_at ASC, daily_seq ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE tickets
		SET status = 'in_service',
			station_id = $1,
			called_at = COALESCE(tickets.called_at, $2),
			last_announced_at = $2
		FROM next_ticket
		WHERE tickets.ticket_id = next_ticket.ticket_id
		RETURNING ` + ticketColumnsQualified("tickets") + `
	`
	row := tx.QueryRow(ctx, query, stationID, calledAt, dayStart)
	return scanTicket(row)
}

func ensureTramiteActive(ctx context.Context, tx pgx.Tx, tramiteID string) error {
	var id string
	row := tx.QueryRow(ctx, `
		SELECT tramite_id
		FROM tramites
		WHERE tramite_id = $1 AND active = TRUE
	`, tramiteID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrTramiteNotFound
		}
		return err
	}
	return nil
}

func ensureStationActive(ctx context.Context, tx pgx.Tx, stationID string) error {
	var id string
	row := tx.QueryRow(ctx, `
		SELECT station_id
		FROM stations
		WHERE station_id = $1 AND active = TRUE
	`, stationID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrStationNotFound
		}
		return err
	}
	return nil
}

func nextDailySeq(ctx context.Context, tx pgx.Tx, prefix, day string) (int, error) {
	var next int
	row := tx.QueryRow(ctx, `
		INSERT INTO ticket_sequences (prefix, day, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET next_number = ticket_sequences.next_number + 1
		RETURNING next_number
	`, prefix, day)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func classifyMissedUpdate(ctx context.Context, tx pgx.Tx, ticketID string) error {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrTicketNotFound
		}
		return err
	}
	return store.ErrInvalidTransition
}

func findTicketByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Ticket, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE request_id = $1
	`, requestID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = requestID
	return ticket, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Ticket, bool, bool, error) {
	var ticketID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_id
		FROM ticket_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, false, nil
		}
		return models.Ticket{}, false, false, err
	}

	if !ticketID.Valid {
		return models.Ticket{}, true, true, nil
	}

	row = tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID.String)
	ticket, err := scanTicket(row)
	if err != nil {
		return models.Ticket{}, false, false, err
	}
	ticket.RequestID = requestID

	return ticket, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, stationID, ticketID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_action_requests (request_id, action, station_id, ticket_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, nullIfEmpty(stationID), nullIfEmpty(ticketID))
	return err
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, ticket models.Ticket) error {
	payload := map[string]interface{}{
		"ticket_id":         ticket.TicketID,
		"display_code":      ticket.DisplayCode,
		"priority_class":    ticket.PriorityClass,
		"tramite_id":        ticket.TramiteID,
		"status":            ticket.Status,
		"daily_seq":         ticket.DailySeq,
		"request_id":        ticket.RequestID,
		"created_at":        ticket.CreatedAt,
		"called_at":         ticket.CalledAt,
		"last_announced_at": ticket.LastAnnouncedAt,
		"finished_at":       ticket.FinishedAt,
		"station_id":        ticket.StationID,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertTicketEvent(ctx, tx, ticket.TicketID, eventType, payloadJSON)
}

func insertTicketEvent(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticketID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_seq, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq DESC
		LIMIT 1
		FOR UPDATE
	`, ticketID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := time.Now().UTC()
	hash := store.ComputeTicketEventHash(prev, ticketID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticketID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
