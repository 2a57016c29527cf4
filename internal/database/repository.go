package database

type ChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListRooms() ([]Room, error)
	DeleteRoom(id int) error
	AddRoomMember(accountId, roomId int) error
	RoomExists(externalId string) (bool, error)
	AppendMessage(roomId string, userId int, username, content string) (Message, error)
	ListRecentMessages(roomId string, limit int) ([]Message, error)
}
