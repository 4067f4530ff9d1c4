package domain

import "github.com/google/uuid"

type UserID = uuid.UUID
type SessionID = uuid.UUID
type NotificationID = uuid.UUID
type OperationID = uuid.UUID
type RecordID = uuid.UUID
