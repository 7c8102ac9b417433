package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Edu Portal API",
        "description": "Credential authentication, session lifecycle and roster management for the education portal",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Registration, login and token verification"},
        {"name": "Users", "description": "User administration and profile editing"},
        {"name": "Faculty", "description": "Faculty roster management"},
        {"name": "Students", "description": "Student roster management"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error or duplicate email"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Return the authenticated user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token"}
                }
            }
        },
        "/auth/password": {
            "put": {
                "tags": ["Auth"],
                "summary": "Change the authenticated user's password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Invalid credentials"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get a user (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update profile fields (admin or self)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete a user (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/faculty": {
            "get": {
                "tags": ["Faculty"],
                "summary": "List faculty roster (admin only)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Faculty"],
                "summary": "Create a faculty member (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateFacultyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/faculty/{id}": {
            "put": {
                "tags": ["Faculty"],
                "summary": "Update a faculty member (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateFacultyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Faculty"],
                "summary": "Delete a faculty member (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/faculty/export": {
            "get": {
                "tags": ["Faculty"],
                "summary": "Export faculty roster as CSV or PDF (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List student roster (admin only)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "put": {
                "tags": ["Students"],
                "summary": "Update a student (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Students"],
                "summary": "Export student roster as CSV or PDF (admin only)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "fullName": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "faculty", "student"]}
            },
            "required": ["email", "password", "fullName", "role"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["old_password", "new_password"]
        },
        "UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "avatar_url": {"type": "string"},
                "phone": {"type": "string"},
                "department": {"type": "string"},
                "roll_no": {"type": "string"},
                "class": {"type": "string"},
                "year": {"type": "string"},
                "gpa": {"type": "number"},
                "subjects": {"type": "array", "items": {"type": "string"}},
                "courses": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CreateFacultyRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "fullName": {"type": "string"},
                "phone": {"type": "string"},
                "department": {"type": "string"},
                "courses": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["email", "fullName"]
        },
        "UpdateFacultyRequest": {
            "type": "object",
            "properties": {
                "fullName": {"type": "string"},
                "phone": {"type": "string"},
                "department": {"type": "string"},
                "courses": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "fullName": {"type": "string"},
                "rollNo": {"type": "string"},
                "class": {"type": "string"},
                "year": {"type": "string"},
                "gpa": {"type": "number"}
            },
            "required": ["email", "fullName"]
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "fullName": {"type": "string"},
                "rollNo": {"type": "string"},
                "class": {"type": "string"},
                "year": {"type": "string"},
                "gpa": {"type": "number"}
            }
        },
        "UserView": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string"},
                "avatar_url": {"type": "string"},
                "phone": {"type": "string"},
                "department": {"type": "string"},
                "roll_no": {"type": "string"},
                "class": {"type": "string"},
                "year": {"type": "string"},
                "gpa": {"type": "number"},
                "subjects": {"type": "array", "items": {"type": "string"}},
                "courses": {"type": "array", "items": {"type": "string"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/UserView"},
                "expires_at": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
