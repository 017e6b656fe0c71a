package httpapi

import (
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/server/models"
)

// userView is the client-safe projection of a user. The password digest
// never leaves the server.
type userView struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	IsVIP        bool       `json:"is_vip"`
	VIPLevel     int        `json:"vip_level"`
	VIPStartTime *time.Time `json:"vip_start_time"`
	VIPEndTime   *time.Time `json:"vip_end_time"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type loginView struct {
	userView
	Token string `json:"token"`
	Exp   int64  `json:"exp"`
}

type pageView struct {
	Data        []userView `json:"data"`
	Total       int        `json:"total"`
	CurrentPage int        `json:"current_page"`
	PageSize    int        `json:"page_size"`
}

func toUserView(u *models.User) userView {
	return userView{
		ID:           u.ID,
		Email:        u.Email,
		IsVIP:        u.IsVIP,
		VIPLevel:     u.VIPLevel,
		VIPStartTime: u.VIPStartTime,
		VIPEndTime:   u.VIPEndTime,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toPageView(p *models.UserPage) pageView {
	out := pageView{
		Data:        make([]userView, 0, len(p.Users)),
		Total:       p.Total,
		CurrentPage: p.Page,
		PageSize:    p.PageSize,
	}
	for _, u := range p.Users {
		out.Data = append(out.Data, toUserView(u))
	}
	return out
}

// TotalPages is used by the list templates.
func (p pageView) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

func (p pageView) HasPrev() bool { return p.CurrentPage > 1 }
func (p pageView) HasNext() bool { return p.CurrentPage < p.TotalPages() }
func (p pageView) PrevPage() int { return p.CurrentPage - 1 }
func (p pageView) NextPage() int { return p.CurrentPage + 1 }
