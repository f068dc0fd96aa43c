package jobs

import (
	"log"
	"time"

	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/services"
)

// ReconcileSettledTransactions retries booking materialization for settled
// transactions that have no booking rows. This is the safety net for the
// window where the success webhook flipped the transaction to completed but
// the booking insert failed.
func ReconcileSettledTransactions() {
	log.Println("Running job: ReconcileSettledTransactions...")

	var orphaned []models.PaymentTransaction
	err := database.DB.
		Where("status = ? AND transaction_type = ?", models.TransactionCompleted, models.TransactionTypePurchase).
		Where("id NOT IN (?)", database.DB.Model(&models.Booking{}).
			Select("payment_transaction_id").
			Where("payment_transaction_id IS NOT NULL")).
		Find(&orphaned).Error
	if err != nil {
		log.Printf("Error finding unmaterialized transactions: %v", err)
		return
	}

	if len(orphaned) == 0 {
		log.Println("No unmaterialized transactions found.")
		return
	}

	recovered := 0
	for i := range orphaned {
		txn := &orphaned[i]
		if err := services.MaterializeBookings(database.DB, txn); err != nil {
			log.Printf("🔥 Reconciliation still failing for transaction %s: %v", txn.ID, err)
			continue
		}
		recovered++
	}

	log.Printf("Reconciled %d of %d unmaterialized transaction(s).", recovered, len(orphaned))
}

// ExpireStalePendingTransactions fails reservation rows that never received a
// webhook. A day is far beyond any provider's intent lifetime.
func ExpireStalePendingTransactions() {
	log.Println("Running job: ExpireStalePendingTransactions...")

	cutoff := time.Now().Add(-24 * time.Hour)

	result := database.DB.Model(&models.PaymentTransaction{}).
		Where("status = ? AND created_at < ?", models.TransactionPending, cutoff).
		Updates(map[string]interface{}{
			"status":         models.TransactionFailed,
			"failure_reason": "Payment intent expired without confirmation",
		})
	if result.Error != nil {
		log.Printf("Error expiring stale transactions: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Expired %d stale pending transaction(s).", result.RowsAffected)
	}
}
