package model

import "github.com/google/uuid"

// ContextKey はコンテキストに値を格納するためのキー型です。
type ContextKey string

const (
	ActorIDKey   ContextKey = "actorID"
	ActorRoleKey ContextKey = "actorRole"
)

type ActorRole string

const (
	RoleTeacher ActorRole = "teacher"
	RoleStudent ActorRole = "student"
)

func (r ActorRole) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Actor は認証済みのリクエスト主体です。認証そのものは外部で行われます。
type Actor struct {
	ID   uuid.UUID
	Role ActorRole
}
