package handlers

import (
	"net/http"

	"github.com/UtkusMalen/CarTrackerBot/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func NoteCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}

		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Текст заметки обязателен"})
			return
		}

		note := models.Note{CarID: car.ID, Text: req.Text}
		if err := db.Create(&note).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, note)
	}
}

// NoteList возвращает страницу заметок, закреплённые сверху
func NoteList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		carID, ok := pathID(c, "id")
		if !ok {
			return
		}
		car, ok := ownedCar(db, c, carID)
		if !ok {
			return
		}
		page := pageParam(c)

		var total int64
		if err := db.Model(&models.Note{}).Where("car_id = ?", car.ID).Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}

		var notes []models.Note
		err := db.Where("car_id = ?", car.ID).
			Order("is_pinned DESC, created_at DESC").
			Limit(10).Offset((page - 1) * 10).
			Find(&notes).Error
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": notes, "total": total, "page": page})
	}
}

func NoteTogglePin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		noteID, ok := pathID(c, "id")
		if !ok {
			return
		}
		note, ok := ownedNote(db, c, noteID)
		if !ok {
			return
		}

		if err := db.Model(&models.Note{}).Where("id = ?", note.ID).
			Update("is_pinned", !note.IsPinned).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_pinned": !note.IsPinned})
	}
}

func NoteDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		noteID, ok := pathID(c, "id")
		if !ok {
			return
		}
		note, ok := ownedNote(db, c, noteID)
		if !ok {
			return
		}

		if err := db.Delete(&models.Note{}, note.ID).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

func ownedNote(db *gorm.DB, c *gin.Context, noteID uint) (*models.Note, bool) {
	var note models.Note
	if err := db.First(&note, noteID).Error; err != nil {
		respondError(c, err)
		return nil, false
	}
	if _, ok := ownedCar(db, c, note.CarID); !ok {
		return nil, false
	}
	return &note, true
}
