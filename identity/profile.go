package identity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Profile is a provider identity normalized across providers.
type Profile struct {
	Provider       Provider
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
}

// Extract decodes raw user-info JSON from provider into a Profile. Email is
// trimmed and lower-cased; it may be empty when the provider withholds it.
func Extract(provider Provider, raw []byte) (Profile, error) {
	var (
		p   Profile
		err error
	)
	switch provider {
	case Google:
		p, err = extractGoogle(raw)
	case GitHub:
		p, err = extractGitHub(raw)
	case Kakao:
		p, err = extractKakao(raw)
	case Naver:
		p, err = extractNaver(raw)
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	p.Provider = provider
	p.ProviderUserID = strings.TrimSpace(p.ProviderUserID)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if p.ProviderUserID == "" {
		return Profile{}, ErrProfileIncomplete
	}
	return p, nil
}

// Google's OIDC userinfo uses sub; the legacy v2 endpoint uses id.
type googleUser struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func extractGoogle(raw []byte) (Profile, error) {
	var u googleUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return Profile{}, err
	}
	id := u.Sub
	if id == "" {
		id = u.ID
	}
	return Profile{ProviderUserID: id, Email: u.Email, Name: u.Name, AvatarURL: u.Picture}, nil
}

type githubUser struct {
	ID        json.Number `json:"id"`
	Login     string      `json:"login"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL string      `json:"avatar_url"`
}

func extractGitHub(raw []byte) (Profile, error) {
	var u githubUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return Profile{}, err
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return Profile{ProviderUserID: u.ID.String(), Email: u.Email, Name: name, AvatarURL: u.AvatarURL}, nil
}

type kakaoUser struct {
	ID           json.Number `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

func extractKakao(raw []byte) (Profile, error) {
	var u kakaoUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return Profile{}, err
	}
	return Profile{
		ProviderUserID: u.ID.String(),
		Email:          u.KakaoAccount.Email,
		Name:           u.KakaoAccount.Profile.Nickname,
		AvatarURL:      u.KakaoAccount.Profile.ProfileImageURL,
	}, nil
}

type naverEnvelope struct {
	ResultCode string `json:"resultcode"`
	Message    string `json:"message"`
	Response   struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Name         string `json:"name"`
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"response"`
}

func extractNaver(raw []byte) (Profile, error) {
	var env naverEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Profile{}, err
	}
	if env.ResultCode != "" && env.ResultCode != "00" {
		return Profile{}, fmt.Errorf("naver result %s: %s", env.ResultCode, env.Message)
	}
	name := env.Response.Name
	if name == "" {
		name = env.Response.Nickname
	}
	return Profile{
		ProviderUserID: env.Response.ID,
		Email:          env.Response.Email,
		Name:           name,
		AvatarURL:      env.Response.ProfileImage,
	}, nil
}
