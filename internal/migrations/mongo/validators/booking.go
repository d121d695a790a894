package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"coach_id",
			"time_slot_id",
			"status",
			"payment_status",
			"payment_amount",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"coach_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"time_slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"status": bson.M{
				"enum": []string{"pending", "confirmed", "completed", "cancelled", "no-show"},
			},

			"payment_status": bson.M{
				"enum": []string{"pending", "paid", "refunded", "failed"},
			},

			"payment_amount": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"cancellation_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_by": bson.M{
				"bsonType": "string",
			},

			"feedback": bson.M{
				"bsonType": "object",
				"required": []string{"rating"},
				"properties": bson.M{
					"rating": bson.M{
						"bsonType": "int",
						"minimum":  1,
						"maximum":  5,
					},
					"comment": bson.M{
						"bsonType":  "string",
						"maxLength": 1000,
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
