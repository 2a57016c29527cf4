package database

import (
	"time"
)

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgChatRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	row := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, name, description, owner_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) "+
			"RETURNING id, external_id, name, description, owner_id, created_at, updated_at",
		params.ExternalId,
		params.Name,
		params.Description,
		params.OwnerId,
		time.Now().UTC(),
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Description,
		&room.OwnerId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, description, owner_id, created_at, updated_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Description,
		&room.OwnerId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgChatRepository) ListRooms() ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT id, external_id, name, description, owner_id, created_at, updated_at FROM rooms " +
			"ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.Name,
			&room.Description,
			&room.OwnerId,
			&room.CreatedAt,
			&room.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) DeleteRoom(id int) error {
	_, err := db.conn.Exec("DELETE FROM rooms WHERE id = $1", id)
	return err
}

func (db *PgChatRepository) AddRoomMember(accountId, roomId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_members (account_id, room_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (account_id, room_id) DO NOTHING",
		accountId,
		roomId,
		time.Now().UTC(),
	)
	return err
}

func (db *PgChatRepository) RoomExists(externalId string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM rooms WHERE external_id = $1)",
		externalId,
	)

	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// AppendMessage persists a message in the named room. The durable id and
// creation timestamp are assigned by the database at insert time and
// returned with the stored row.
func (db *PgChatRepository) AppendMessage(roomId string, userId int, username, content string) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (room_id, account_id, username, content, created_at) "+
			"SELECT r.id, $2, $3, $4, now() FROM rooms r WHERE r.external_id = $1 "+
			"RETURNING id, created_at",
		roomId,
		userId,
		username,
		content,
	)

	msg := Message{
		RoomId:   roomId,
		UserId:   userId,
		Username: username,
		Content:  content,
	}
	err := row.Scan(&msg.Id, &msg.CreatedAt)

	return msg, err
}

// ListRecentMessages returns the latest limit messages in the room in
// ascending id order, matching the order they were broadcast.
func (db *PgChatRepository) ListRecentMessages(roomId string, limit int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT m.id, m.account_id, m.username, m.content, m.created_at FROM ("+
			"SELECT id, account_id, username, content, created_at FROM messages "+
			"WHERE room_id = (SELECT id FROM rooms WHERE external_id = $1) "+
			"ORDER BY id DESC LIMIT $2"+
			") m ORDER BY m.id ASC",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg := Message{RoomId: roomId}
		if err := rows.Scan(
			&msg.Id,
			&msg.UserId,
			&msg.Username,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
