package services

import (
	"fmt"
	"strings"
	"time"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var spanishWeekdays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

// FormatDate renders a YYYY-MM-DD date in Spanish long form,
// e.g. "20 de noviembre de 2025". Unparseable input is returned as-is.
func FormatDate(dateStr string) string {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return dateStr
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}

// FormatLongDate renders a date with its weekday, used to anchor the
// extraction prompt, e.g. "lunes, 10 de noviembre de 2025".
func FormatLongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d",
		spanishWeekdays[t.Weekday()], t.Day(), spanishMonths[t.Month()-1], t.Year())
}

// FormatClock normalises a time to zero-padded HH:MM.
func FormatClock(timeStr string) string {
	parts := strings.SplitN(timeStr, ":", 2)
	hours := parts[0]
	minutes := "00"
	if len(parts) == 2 && parts[1] != "" {
		minutes = parts[1]
	}
	if len(hours) == 1 {
		hours = "0" + hours
	}
	if len(minutes) == 1 {
		minutes = "0" + minutes
	}
	return hours + ":" + minutes
}

// BookingMessage is the WhatsApp message sent to the court contact.
func BookingMessage(date, initialTime, endTime string) string {
	return fmt.Sprintf("Hola amigos! Quiero reservar una cancha el %s de %s a %s",
		FormatDate(date), FormatClock(initialTime), FormatClock(endTime))
}

// GroupConfirmation is the WhatsApp message sent to the group after a
// booking request went out.
func GroupConfirmation(senderName, date, initialTime, endTime string) string {
	name := senderName
	if name == "" {
		name = "Usuario"
	}
	return fmt.Sprintf("%s - Reserva confirmada para %s de %s a %s",
		name, FormatDate(date), FormatClock(initialTime), FormatClock(endTime))
}

// ReminderMessage is the weekly nudge sent to the group.
func ReminderMessage(reservationEmail string) string {
	return fmt.Sprintf("Escríbeme tu reserva de tenis a %s", reservationEmail)
}
