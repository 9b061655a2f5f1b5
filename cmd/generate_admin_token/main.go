package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/UtkusMalen/CarTrackerBot/internal/utils"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
)

// Выписывает долгоживущий административный токен для выдачи наград вручную
// через /api/admin/rewards
func main() {
	days := flag.Int("days", 365, "срок действия токена в днях")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET не задан")
	}

	claims := utils.Claims{
		UserID: 0, // служебный идентификатор администратора
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().AddDate(0, 0, *days)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatalf("Не удалось подписать токен: %v", err)
	}

	fmt.Println(tokenString)
}
