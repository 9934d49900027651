package domain

import "time"

// Material is an uploaded study file. The bytes live in S3 under Object.
type Material struct {
	MaterialID  string    `json:"id" dynamodbav:"material_id"`
	Title       string    `json:"title" dynamodbav:"title"`
	Subject     string    `json:"subject" dynamodbav:"subject"`
	Description string    `json:"description" dynamodbav:"description"`
	Object      string    `json:"-" dynamodbav:"object"`
	FileName    string    `json:"file_name" dynamodbav:"file_name"`
	ContentType string    `json:"content_type" dynamodbav:"content_type"`
	Size        int64     `json:"size" dynamodbav:"size"`
	Hash        string    `json:"hash" dynamodbav:"hash"`
	IsPrivate   bool      `json:"is_private" dynamodbav:"is_private"`
	OwnerID     string    `json:"owner_id" dynamodbav:"owner_id"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
}
