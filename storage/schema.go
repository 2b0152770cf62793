package storage

import (
	"context"
	"fmt"
)

const schema = `
create table if not exists chat_archive (
  message_id   text primary key,
  channel      text not null,
  user_id      text,
  username     text,
  display_name text,
  text         text not null,
  badges       jsonb,
  emotes       jsonb,
  color        text,
  is_mod       boolean,
  bits         integer,
  bot_command  text,
  sent_at      timestamptz not null
);

create table if not exists channel_notices (
  id        bigserial primary key,
  channel   text not null,
  msg_id    text,
  message   text,
  tags      jsonb,
  notice_at timestamptz not null
);`

// EnsureSchema создаёт таблицы архива, если их ещё нет.
func EnsureSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}
