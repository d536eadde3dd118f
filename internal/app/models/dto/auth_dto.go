package dto

// RegisterRequest represents the payload for student registration
type RegisterRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=8"`
	FirstName    string  `json:"firstName" binding:"required,min=2,max=100"`
	LastName     string  `json:"lastName" binding:"required,min=2,max=100"`
	CGPA         float64 `json:"cgpa" binding:"required,gte=0,lte=10"`
	CurrentBatch string  `json:"currentBatch" binding:"required"`
}

// LoginRequest represents the payload for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries an issued access token
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType" example:"Bearer"`
	ExpiresIn   int    `json:"expiresIn" example:"3600"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token   TokenResponse   `json:"token"`
	Student StudentResponse `json:"student"`
}
