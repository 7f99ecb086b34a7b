// Package legacy maps records to and from the JSON shape the web client
// and its json-server backend already store.
package legacy

import (
	"encoding/json"
	"fmt"
	"time"

	"izin-talep/internal/domain"
	"izin-talep/internal/leave"
	leaveerrors "izin-talep/internal/leave/errors"
	"izin-talep/internal/session"
	sessionerrors "izin-talep/internal/session/errors"
)

type Izin struct {
	ID              string  `json:"id"`
	CalisanID       string  `json:"calisanId"`
	CalisanAd       string  `json:"calisanAd"`
	Tur             string  `json:"tur"`
	Baslangic       string  `json:"baslangic"`
	Bitis           string  `json:"bitis"`
	Aciklama        string  `json:"aciklama"`
	Durum           string  `json:"durum"`
	Not             *string `json:"not,omitempty"`
	OlusturmaTarihi string  `json:"olusturmaTarihi"`
	KararTarihi     *string `json:"karar_tarihi,omitempty"`
}

// IzinPatch carries the fields a decision changes.
type IzinPatch struct {
	Durum       string  `json:"durum"`
	Not         *string `json:"not,omitempty"`
	KararTarihi *string `json:"karar_tarihi,omitempty"`
}

// Kullanici holds the bcrypt hash in Sifre, never the plain secret.
type Kullanici struct {
	ID    string `json:"id"`
	Ad    string `json:"ad"`
	Rol   string `json:"rol"`
	Email string `json:"email,omitempty"`
	Sifre string `json:"sifre,omitempty"`
}

var (
	statusToWire = map[domain.LeaveStatus]string{
		domain.LeaveStatusPending:   "BEKLEMEDE",
		domain.LeaveStatusApproved:  "ONAYLANDI",
		domain.LeaveStatusRejected:  "REDDEDILDI",
		domain.LeaveStatusCancelled: "IPTAL_EDILDI",
	}
	kindToWire = map[domain.LeaveKind]string{
		domain.LeaveKindAnnual: "Yıllık",
		domain.LeaveKindSick:   "Hastalık",
		domain.LeaveKindUnpaid: "Ücretsiz",
		domain.LeaveKindOther:  "Diğer",
	}
	roleToWire = map[domain.Role]string{
		domain.RoleEmployee: "CALISAN",
		domain.RoleManager:  "YONETICI",
	}

	statusFromWire = invert(statusToWire)
	kindFromWire   = invert(kindToWire)
	roleFromWire   = invert(roleToWire)
)

func invert[K comparable](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func EncodeLeave(l leave.LeaveRequest) Izin {
	out := Izin{
		ID:              l.ID,
		CalisanID:       l.EmployeeID,
		CalisanAd:       l.EmployeeName,
		Tur:             kindToWire[l.Kind],
		Baslangic:       leave.FormatDate(l.StartDate),
		Bitis:           leave.FormatDate(l.EndDate),
		Aciklama:        l.Description,
		Durum:           statusToWire[l.Status],
		Not:             l.Note,
		OlusturmaTarihi: l.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if l.DecidedAt != nil {
		v := l.DecidedAt.UTC().Format(time.RFC3339Nano)
		out.KararTarihi = &v
	}
	return out
}

func PatchFor(l leave.LeaveRequest) IzinPatch {
	enc := EncodeLeave(l)
	return IzinPatch{Durum: enc.Durum, Not: enc.Not, KararTarihi: enc.KararTarihi}
}

// DecodeLeave rejects any unknown enumeration value or malformed date.
func DecodeLeave(in Izin) (leave.LeaveRequest, error) {
	kind, ok := kindFromWire[in.Tur]
	if !ok {
		return leave.LeaveRequest{}, fmt.Errorf("unknown tur %q", in.Tur)
	}
	status, ok := statusFromWire[in.Durum]
	if !ok {
		return leave.LeaveRequest{}, fmt.Errorf("unknown durum %q", in.Durum)
	}
	start, err := leave.ParseDate(in.Baslangic)
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("baslangic: %w", err)
	}
	end, err := leave.ParseDate(in.Bitis)
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("bitis: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, in.OlusturmaTarihi)
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("olusturmaTarihi: %w", err)
	}

	out := leave.LeaveRequest{
		ID:           in.ID,
		EmployeeID:   in.CalisanID,
		EmployeeName: in.CalisanAd,
		Kind:         kind,
		StartDate:    start,
		EndDate:      end,
		Description:  in.Aciklama,
		Status:       status,
		Note:         in.Not,
		CreatedAt:    created,
	}
	if in.KararTarihi != nil {
		decided, err := time.Parse(time.RFC3339Nano, *in.KararTarihi)
		if err != nil {
			return leave.LeaveRequest{}, fmt.Errorf("karar_tarihi: %w", err)
		}
		out.DecidedAt = &decided
	}
	if err := out.Validate(); err != nil {
		return leave.LeaveRequest{}, err
	}
	return out, nil
}

// DecodeLeaves keeps the stored order. Any bad record fails the whole
// collection with leaveerrors.ErrCorruptData.
func DecodeLeaves(in []Izin) ([]leave.LeaveRequest, error) {
	out := make([]leave.LeaveRequest, 0, len(in))
	for i, rec := range in {
		l, err := DecodeLeave(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %v", leaveerrors.ErrCorruptData, i, rec.ID, err)
		}
		l.Seq = int64(i + 1)
		out = append(out, l)
	}
	return out, nil
}

func EncodeLeaves(in []leave.LeaveRequest) []Izin {
	out := make([]Izin, 0, len(in))
	for _, l := range in {
		out = append(out, EncodeLeave(l))
	}
	return out
}

func MarshalLeaves(in []leave.LeaveRequest) ([]byte, error) {
	return json.Marshal(EncodeLeaves(in))
}

func UnmarshalLeaves(b []byte) ([]leave.LeaveRequest, error) {
	var raw []Izin
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", leaveerrors.ErrCorruptData, err)
	}
	return DecodeLeaves(raw)
}

func EncodeUser(u session.User) Kullanici {
	return Kullanici{
		ID:    u.ID,
		Ad:    u.Name,
		Rol:   roleToWire[u.Role],
		Email: u.Email,
		Sifre: u.PasswordHash,
	}
}

func DecodeUser(in Kullanici) (session.User, error) {
	role, ok := roleFromWire[in.Rol]
	if !ok {
		return session.User{}, fmt.Errorf("%w: unknown rol %q", sessionerrors.ErrCorruptData, in.Rol)
	}
	u := session.User{
		ID:           in.ID,
		Name:         in.Ad,
		Role:         role,
		Email:        in.Email,
		PasswordHash: in.Sifre,
	}
	if err := u.Validate(); err != nil {
		return session.User{}, fmt.Errorf("%w: %v", sessionerrors.ErrCorruptData, err)
	}
	return u, nil
}

func MarshalUser(u session.User) ([]byte, error) {
	return json.Marshal(EncodeUser(u))
}

func UnmarshalUser(b []byte) (session.User, error) {
	var raw Kullanici
	if err := json.Unmarshal(b, &raw); err != nil {
		return session.User{}, fmt.Errorf("%w: %v", sessionerrors.ErrCorruptData, err)
	}
	return DecodeUser(raw)
}
