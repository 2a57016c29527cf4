package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) ListRooms() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) DeleteRoom(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockChatRepository) AddRoomMember(accountId, roomId int) error {
	args := m.Called(accountId, roomId)
	return args.Error(0)
}
func (m *MockChatRepository) RoomExists(externalId string) (bool, error) {
	args := m.Called(externalId)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) AppendMessage(roomId string, userId int, username, content string) (Message, error) {
	args := m.Called(roomId, userId, username, content)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) ListRecentMessages(roomId string, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
