package bridge

import "github.com/dkeye/callbridge/internal/domain"

type LoginPayload struct {
	IsLoggedIn bool `json:"isLoggedIn"`
}

type IncomingCallPayload struct {
	CallID domain.CallID `json:"callId"`
}

type StatusPayload struct {
	Status domain.CallStatus `json:"status"`
}

type ParticipantsPayload struct {
	Memberships []domain.Membership `json:"memberships"`
}

type ValuePayload struct {
	Value string `json:"value"`
}
