package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sync-labs/model-el-sync/internals/types"
	"github.com/sync-labs/model-el-sync/internals/utils"
	"github.com/sync-labs/model-el-sync/subscribers"
)

const (
	ApplicationName             = "ModelElSync_Listener"
	PoolMinConn                 = 2
	PoolMaxConn                 = 5
	EventName                   = "modelsync_event"
	NotifyTriggerFunctionPrefix = "modelsync_trigger"
	SchemaName                  = "modelsync"
)

// Subscriber observes table changes through LISTEN/NOTIFY triggers and
// doubles as the record fetcher for config-declared table documents.
type Subscriber struct {
	subscribers.Subscriber
	conn *pgxpool.Pool
}

func (pg *Subscriber) Init(config map[string]any) error {
	connConf, err := pgxpool.ParseConfig("")
	if err != nil {
		return err
	}
	connConf.ConnConfig.Config.RuntimeParams["application_name"] = ApplicationName
	connConf.MinConns = PoolMinConn
	connConf.MaxConns = PoolMaxConn
	_ = utils.ParseMapKey(config, "host", &connConf.ConnConfig.Config.Host)
	_ = utils.ParseMapKey(config, "port", &connConf.ConnConfig.Config.Port)
	_ = utils.ParseMapKey(config, "database", &connConf.ConnConfig.Config.Database)
	_ = utils.ParseMapKey(config, "username", &connConf.ConnConfig.Config.User)
	_ = utils.ParseMapKey(config, "password", &connConf.ConnConfig.Config.Password)

	if pg.conn, err = pgxpool.NewWithConfig(context.Background(), connConf); err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	_, err = pg.conn.Exec(context.Background(), fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE; CREATE SCHEMA "%s"`, SchemaName, SchemaName))
	if err != nil {
		return fmt.Errorf("cannot create schema: %w", err)
	}
	pg.Logger.Printf("Successfully connected to %s@%s/%s", config["username"], config["host"], config["database"])
	return nil
}

// PrepareListen installs one notify trigger per watched table.
func (pg *Subscriber) PrepareListen(ctx context.Context, tables []types.WatchedTable) error {
	for _, table := range tables {
		if err := pg.initTableListener(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

func (pg *Subscriber) initTableListener(ctx context.Context, table types.WatchedTable) error {
	functionName := NotifyTriggerFunctionPrefix + "_" + table.Name
	_, err := pg.conn.Exec(ctx, fmt.Sprintf(`
CREATE OR REPLACE FUNCTION "%s"."%s"() RETURNS trigger AS $trigger$
BEGIN
  IF TG_OP <> 'UPDATE' OR NEW IS DISTINCT FROM OLD THEN
    PERFORM pg_notify('%s', json_build_object(
        'table', '%s',
        'action', LOWER(TG_OP),
        'reference', COALESCE(NEW."%s", OLD."%s")::TEXT
    )::TEXT);
  END IF;
  RETURN COALESCE(NEW, OLD);
END;
$trigger$ LANGUAGE plpgsql VOLATILE;
`, SchemaName, functionName, EventName, table.Name, table.ReferenceField, table.ReferenceField))
	if err != nil {
		return fmt.Errorf("cannot create trigger function for %s: %w", table.Name, err)
	}

	triggerName := "modelsync_" + table.Name + "_trigger"
	_, err = pg.conn.Exec(ctx, fmt.Sprintf(
		`CREATE OR REPLACE TRIGGER %s AFTER DELETE OR UPDATE OR INSERT ON %s FOR EACH ROW EXECUTE PROCEDURE "%s"."%s"();`,
		triggerName,
		table.Name,
		SchemaName,
		functionName,
	))
	if err != nil {
		return fmt.Errorf("cannot create trigger for %s: %w", table.Name, err)
	}
	return nil
}

// Listen blocks on the notification channel, translating every payload
// into a change event for the attached handlers.
func (pg *Subscriber) Listen(ctx context.Context) error {
	persistentConn, err := pg.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cannot get listen connection: %w", err)
	}
	defer persistentConn.Release()

	listenConn := persistentConn.Conn()
	if _, err = listenConn.Exec(ctx, "listen "+EventName); err != nil {
		return fmt.Errorf("error listening to channel: %w", err)
	}

	for {
		notification, err := listenConn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error waiting for notification: %w", err)
		}
		instance, action, err := parseNotification(notification.Payload)
		if err != nil {
			pg.Logger.Error().Err(err).Msg("Cannot parse notification")
			continue
		}
		pg.Dispatch(instance, action)
	}
}

// parseNotification maps a trigger payload to an instance and the action
// the registry should run. Inserts and updates both become index actions.
func parseNotification(payload string) (types.Instance, types.ActionType, error) {
	var res struct {
		Table     string `json:"table"`
		Action    string `json:"action"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, "", err
	}
	instance := types.RawInstance{Model: res.Table, Ref: res.Reference}

	switch res.Action {
	case "insert", "update":
		return instance, types.ActionIndex, nil
	case "delete":
		return instance, types.ActionDelete, nil
	default:
		return nil, "", fmt.Errorf("unable to parse event with action: %s", res.Action)
	}
}

func (pg *Subscriber) Terminate() {
	if pg.conn != nil {
		pg.conn.Close()
	}
}
